package quadtree

import (
	"errors"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

type point struct {
	Item
	id   int
	x, y float32
}

func (p *point) QTreePosition() (float32, float32) { return p.x, p.y }

func ids(objs []Object) []int {
	out := make([]int, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.(*point).id)
	}
	sort.Ints(out)
	return out
}

func bruteRect(pts []*point, r Rect) []int {
	out := []int{}
	for _, p := range pts {
		if p.Inserted() && r.Contains(p.x, p.y) {
			out = append(out, p.id)
		}
	}
	return out
}

func bruteRadius(pts []*point, x, y, radius float32) []int {
	out := []int{}
	for _, p := range pts {
		dx, dy := p.x-x, p.y-y
		if p.Inserted() && dx*dx+dy*dy < radius*radius {
			out = append(out, p.id)
		}
	}
	return out
}

func TestQueriesMatchBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	tree := New(NewRect(-100, -100, 100, 100), 8)
	pts := make([]*point, 500)
	for i := range pts {
		pts[i] = &point{id: i, x: rng.Float32()*200 - 100, y: rng.Float32()*200 - 100}
		require.NoError(t, tree.Insert(pts[i]))
	}
	require.Equal(t, 500, tree.Len())

	for i := 0; i < 50; i++ {
		x0, y0 := rng.Float32()*200-100, rng.Float32()*200-100
		r := NewRect(x0, y0, x0+rng.Float32()*60, y0+rng.Float32()*60)
		require.Equal(t, bruteRect(pts, r), ids(tree.Query(r, nil)))

		cx, cy, rad := rng.Float32()*200-100, rng.Float32()*200-100, rng.Float32()*40
		require.Equal(t, bruteRadius(pts, cx, cy, rad), ids(tree.QueryRadius(cx, cy, rad, nil)))

		var viaFunc []Object
		tree.QueryRadiusFunc(cx, cy, rad, func(o Object) { viaFunc = append(viaFunc, o) })
		require.Equal(t, bruteRadius(pts, cx, cy, rad), ids(viaFunc))
	}

	// move everything and check again
	for _, p := range pts {
		p.x = clamp(p.x+rng.Float32()*20-10, -100, 100)
		p.y = clamp(p.y+rng.Float32()*20-10, -100, 100)
		require.NoError(t, p.Update())
	}
	whole := tree.Bounds()
	require.Len(t, tree.Query(whole, nil), 500)
	for i := 0; i < 50; i++ {
		x0, y0 := rng.Float32()*200-100, rng.Float32()*200-100
		r := NewRect(x0, y0, x0+rng.Float32()*60, y0+rng.Float32()*60)
		var viaFunc []Object
		tree.QueryFunc(r, func(o Object) { viaFunc = append(viaFunc, o) })
		require.Equal(t, bruteRect(pts, r), ids(viaFunc))
	}

	for _, p := range pts {
		tree.Remove(p)
	}
	require.Zero(t, tree.Len())
	require.Equal(t, 1, tree.NodeCount())
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func TestSplitAndMerge(t *testing.T) {
	tree := New(NewRect(-100, -100, 100, 100), 8)
	pts := []*point{
		{id: 0, x: -10, y: -10},
		{id: 1, x: 10, y: -10},
		{id: 2, x: -10, y: 10},
	}
	for _, p := range pts {
		require.NoError(t, tree.Insert(p))
	}
	require.Equal(t, 1, tree.NodeCount(), "split threshold not reached")

	fourth := &point{id: 3, x: 10, y: 10}
	require.NoError(t, tree.Insert(fourth))
	st := tree.Stats()
	require.Equal(t, 5, st.Nodes)
	require.Equal(t, 4, st.Leaves)
	require.Equal(t, 1, st.Splits)
	require.Equal(t, 1, st.MaxDepth)

	tree.Remove(fourth)
	st = tree.Stats()
	require.Equal(t, 1, st.Nodes, "three residents fit in the parent again")
	require.Equal(t, 1, st.Merges)
	require.Len(t, tree.Query(tree.Bounds(), nil), 3)
}

func TestCascadeSplitAndMerge(t *testing.T) {
	tree := New(NewRect(-100, -100, 100, 100), 8)
	pts := []*point{
		{id: 0, x: 0, y: 0},
		{id: 1, x: 1, y: 0},
		{id: 2, x: 0, y: 1},
		{id: 3, x: 1, y: 1},
	}
	for _, p := range pts {
		require.NoError(t, tree.Insert(p))
	}
	require.Greater(t, tree.Stats().MaxDepth, 1, "clustered points split repeatedly")

	tree.Remove(pts[0])
	tree.Remove(pts[1])
	tree.Remove(pts[2])
	require.Equal(t, 1, tree.NodeCount())
	got := tree.QueryRadius(1, 1, 0.5, nil)
	require.Equal(t, []int{3}, ids(got))
}

func TestUnitSquareInLargeWorld(t *testing.T) {
	tree := New(NewRect(-1000, -1000, 1000, 1000), 7)
	pts := []*point{
		{id: 0, x: 0, y: 0},
		{id: 1, x: 1, y: 0},
		{id: 2, x: 0, y: 1},
		{id: 3, x: 1, y: 1},
	}
	for _, p := range pts {
		require.NoError(t, tree.Insert(p))
	}
	st := tree.Stats()
	require.Equal(t, 7, st.MaxDepth, "all four share a quadrant down to the depth limit")
	require.Equal(t, 7, st.Splits)
	require.Equal(t, []int{0, 1, 2, 3}, ids(tree.QueryRadius(0, 0, 5, nil)))

	for _, p := range pts[:3] {
		p.Remove()
	}
	st = tree.Stats()
	require.Equal(t, 1, st.Nodes)
	require.Equal(t, 7, st.Merges)
	require.Equal(t, []int{3}, ids(tree.QueryRadius(0, 0, 5, nil)))
}

func TestUpdateWithinLeafKeepsNode(t *testing.T) {
	tree := New(NewRect(-100, -100, 100, 100), 8)
	for i, xy := range [][2]float32{{-50, -50}, {50, -50}, {-50, 50}, {50, 50}} {
		require.NoError(t, tree.Insert(&point{id: i, x: xy[0], y: xy[1]}))
	}
	p := &point{id: 9, x: 60, y: 60}
	require.NoError(t, tree.Insert(p))
	before := p.Node()

	require.NoError(t, tree.Update(p))
	require.Equal(t, before, p.Node(), "unchanged position")

	p.x = 61
	require.NoError(t, tree.Update(p))
	require.Equal(t, before, p.Node(), "still inside the same leaf")

	p.x = 100.005 // within fuzz of the leaf's right edge
	require.NoError(t, tree.Update(p))
	require.Equal(t, before, p.Node())

	p.x, p.y = -60, -60
	require.NoError(t, tree.Update(p))
	require.NotEqual(t, before, p.Node())
	require.Equal(t, []int{9}, ids(tree.QueryRadius(-60, -60, 1, nil)))
}

func TestOutOfBounds(t *testing.T) {
	tree := New(NewRect(0, 0, 10, 10), 4)
	p := &point{x: 11, y: 5}
	err := tree.Insert(p)
	require.True(t, errors.Is(err, ErrOutOfBounds))
	require.False(t, p.Inserted())
	require.Zero(t, tree.Len())

	q := &point{x: 5, y: 5}
	require.NoError(t, tree.Insert(q))
	q.x = 20
	require.ErrorIs(t, q.Update(), ErrOutOfBounds)
	require.False(t, q.Inserted())
	require.Zero(t, tree.Len())

	// corners are inside the closed root rectangle
	require.NoError(t, tree.Insert(&point{x: 10, y: 10}))
	require.NoError(t, tree.Insert(&point{x: 0, y: 0}))
}

func TestMisusePanics(t *testing.T) {
	tree := New(NewRect(0, 0, 10, 10), 4)
	other := New(NewRect(0, 0, 10, 10), 4)
	p := &point{x: 1, y: 1}
	require.NoError(t, tree.Insert(p))
	require.Panics(t, func() { _ = tree.Insert(p) })
	require.Panics(t, func() { other.Remove(p) })

	p.Item.node = newNodeRef(0, 99)
	require.Panics(t, func() { tree.Remove(p) }, "stale handle")

	require.Panics(t, func() { New(NewRect(0, 0, 10, 10), 4, WithThresholds(1, 1)) })
	require.Panics(t, func() { New(NewRect(0, 0, 0, 10), 4) })
}

func TestRemoveNotInsertedIsNoop(t *testing.T) {
	tree := New(NewRect(0, 0, 10, 10), 4)
	p := &point{x: 1, y: 1}
	tree.Remove(p)
	p.Remove()
	require.NoError(t, p.Update())
	require.Zero(t, tree.Len())
}

func TestMaxDepthStopsSplitting(t *testing.T) {
	tree := New(NewRect(0, 0, 16, 16), 2)
	for i := 0; i < 20; i++ {
		require.NoError(t, tree.Insert(&point{id: i, x: 1, y: 1}))
	}
	st := tree.Stats()
	require.Equal(t, 2, st.MaxDepth)
	require.Equal(t, 20, st.Objects)
	require.Len(t, tree.QueryRadius(1, 1, 0.1, nil), 20)
}

func TestGatherOutlines(t *testing.T) {
	tree := New(NewRect(-100, -100, 100, 100), 8)
	segments := 0
	tree.GatherOutlines(func(x0, y0, x1, y1 float32) { segments++ })
	require.Equal(t, 4, segments, "root border only")

	for i, xy := range [][2]float32{{-50, -50}, {50, -50}, {-50, 50}, {50, 50}} {
		require.NoError(t, tree.Insert(&point{id: i, x: xy[0], y: xy[1]}))
	}
	segments = 0
	tree.GatherOutlines(func(x0, y0, x1, y1 float32) { segments++ })
	require.Equal(t, 6, segments, "border plus one cross")

	var cross [][4]float32
	tree.GatherCrosses(func(x0, y0, x1, y1 float32) { cross = append(cross, [4]float32{x0, y0, x1, y1}) })
	require.Equal(t, [][4]float32{{0, -100, 0, 100}, {-100, 0, 100, 0}}, cross)
}

func BenchmarkUpdate(b *testing.B) {
	rng := rand.New(rand.NewPCG(1, 2))
	tree := New(NewRect(-1000, -1000, 1000, 1000), 10)
	pts := make([]*point, 2000)
	for i := range pts {
		pts[i] = &point{id: i, x: rng.Float32()*2000 - 1000, y: rng.Float32()*2000 - 1000}
		_ = tree.Insert(pts[i])
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := pts[i%len(pts)]
		p.x = clamp(p.x+rng.Float32()*2-1, -1000, 1000)
		p.y = clamp(p.y+rng.Float32()*2-1, -1000, 1000)
		_ = p.Update()
	}
}
