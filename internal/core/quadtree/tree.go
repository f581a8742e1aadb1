// Package quadtree is a dynamic 2-D spatial index for moving objects.
//
// Leaves hold an intrusive list of resident objects. A leaf that reaches the
// split threshold turns into four children covering exact halves of its
// rectangle; when removals leave four sibling leaves with few enough
// residents in total they collapse back into their parent. Objects remember
// their leaf, so removal and the common "moved but still in the same cell"
// update never descend from the root.
//
// Nodes come from a tree-owned pool and are referenced from objects by
// generation-counted handles, so a handle to a recycled node is detected
// instead of silently pointing at the wrong cell.
package quadtree

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/robinei/space/internal/core/alloc"
)

const (
	DefaultSplitThreshold = 3
	DefaultMergeThreshold = 1
	DefaultFuzz           = 0.01
)

// ErrOutOfBounds is returned when inserting an object whose position lies
// outside the root rectangle. The object is left unindexed.
var ErrOutOfBounds = errors.New("quadtree: position outside root rectangle")

// Object is anything that can be indexed. Implementations embed Item and
// report their current position.
type Object interface {
	QTreePosition() (x, y float32)
	QTreeItem() *Item
}

// NodeRef is a generation-counted node handle: pool slot index in the low
// 32 bits, generation in the high 32 bits. The zero NodeRef is "no node".
type NodeRef uint64

func newNodeRef(index int, gen uint32) NodeRef {
	return NodeRef(uint64(gen)<<32 | uint64(uint32(index)))
}

func (r NodeRef) index() int         { return int(uint32(r)) }
func (r NodeRef) generation() uint32 { return uint32(r >> 32) }

// Item is the intrusive part of an indexed object: the list link and a
// back reference to the leaf holding it. The zero Item is not inserted.
type Item struct {
	tree  *Tree
	node  NodeRef
	owner Object
	prev  *Item
	next  *Item
}

// QTreeItem lets types that embed Item satisfy Object.
func (it *Item) QTreeItem() *Item { return it }

// Inserted reports whether the item is currently in a tree.
func (it *Item) Inserted() bool { return it.tree != nil }

// Node returns the handle of the leaf currently holding the item.
func (it *Item) Node() NodeRef { return it.node }

// Remove takes the item out of whatever tree holds it.
func (it *Item) Remove() {
	if it.tree != nil {
		it.tree.Remove(it.owner)
	}
}

// Update re-files the item after its owner moved. See Tree.Update.
func (it *Item) Update() error {
	if it.tree == nil {
		return nil
	}
	return it.tree.Update(it.owner)
}

type node struct {
	rect   Rect
	center mgl32.Vec2
	parent *node
	child  [4]*node // all nil on leaves
	depth  int
	index  int

	head  *Item
	count int
}

func (n *node) leaf() bool { return n.child[0] == nil }

// Tree is the spatial index. Not safe for concurrent use.
type Tree struct {
	nodes alloc.IterablePool[node]
	gens  []uint32
	root  *node

	maxDepth int
	split    int
	merge    int
	fuzz     float32

	objects int
	splits  int
	merges  int
}

type Option func(*Tree)

// WithFuzz sets how far an object may stray outside its leaf before Update
// moves it. The same margin widens node bounds during queries so straying
// objects are still found.
func WithFuzz(f float32) Option {
	return func(t *Tree) { t.fuzz = f }
}

// WithThresholds overrides the split and merge thresholds.
func WithThresholds(split, merge int) Option {
	return func(t *Tree) {
		t.split = split
		t.merge = merge
	}
}

// New builds an empty tree over rect. Leaves at maxDepth never split.
func New(rect Rect, maxDepth int, opts ...Option) *Tree {
	t := &Tree{
		maxDepth: maxDepth,
		split:    DefaultSplitThreshold,
		merge:    DefaultMergeThreshold,
		fuzz:     DefaultFuzz,
	}
	for _, opt := range opts {
		opt(t)
	}
	if maxDepth < 0 || t.split < 1 || t.merge < 0 || t.merge >= t.split || t.fuzz < 0 {
		panic(fmt.Sprintf("quadtree: invalid parameters depth=%d split=%d merge=%d fuzz=%g",
			maxDepth, t.split, t.merge, t.fuzz))
	}
	if !(rect.Min[0] < rect.Max[0] && rect.Min[1] < rect.Max[1]) {
		panic("quadtree: empty root rectangle")
	}
	t.root = t.newNode(nil, rect)
	return t
}

func (t *Tree) Bounds() Rect   { return t.root.rect }
func (t *Tree) MaxDepth() int  { return t.maxDepth }
func (t *Tree) Fuzz() float32  { return t.fuzz }
func (t *Tree) Len() int       { return t.objects }
func (t *Tree) NodeCount() int { return t.nodes.Len() }

// Insert files obj under the leaf containing its position.
// Inserting an object that is already in a tree panics.
func (t *Tree) Insert(obj Object) error {
	it := obj.QTreeItem()
	if it.tree != nil {
		panic("quadtree: object inserted twice")
	}
	x, y := obj.QTreePosition()
	if !t.root.rect.Contains(x, y) {
		return fmt.Errorf("%w: (%g, %g)", ErrOutOfBounds, x, y)
	}
	it.owner = obj
	t.insert(t.root, it, x, y)
	t.objects++
	return nil
}

func (t *Tree) insert(n *node, it *Item, x, y float32) {
	for {
		if n.leaf() {
			if n.count < t.split || n.depth >= t.maxDepth {
				t.link(n, it)
				return
			}
			t.splitNode(n)
		}
		n = n.child[quadrant(n.center, x, y)]
	}
}

func (t *Tree) splitNode(n *node) {
	lo, hi, c := n.rect.Min, n.rect.Max, n.center
	n.child[0] = t.newNode(n, Rect{Min: lo, Max: c})
	n.child[1] = t.newNode(n, Rect{Min: mgl32.Vec2{c[0], lo[1]}, Max: mgl32.Vec2{hi[0], c[1]}})
	n.child[2] = t.newNode(n, Rect{Min: mgl32.Vec2{lo[0], c[1]}, Max: mgl32.Vec2{c[0], hi[1]}})
	n.child[3] = t.newNode(n, Rect{Min: c, Max: hi})
	t.splits++

	for n.head != nil {
		it := n.head
		t.unlink(n, it)
		x, y := it.owner.QTreePosition()
		t.insert(n.child[quadrant(c, x, y)], it, x, y)
	}
}

// Remove takes obj out of the tree, merging underpopulated siblings back
// into their parent. Removing an object that is not in a tree is a no-op.
func (t *Tree) Remove(obj Object) {
	it := obj.QTreeItem()
	if it.tree == nil {
		return
	}
	if it.tree != t {
		panic("quadtree: object belongs to another tree")
	}
	n := t.resolve(it.node)
	if !n.leaf() {
		panic("quadtree: object filed under an internal node")
	}
	t.unlink(n, it)
	it.tree = nil
	it.owner = nil
	t.objects--

	if n.count <= t.merge {
		t.maybeMerge(n)
	}
}

// maybeMerge collapses n and its siblings into their parent when they are
// all leaves holding at most the split threshold in total, then tries again
// one level up.
func (t *Tree) maybeMerge(n *node) {
	for p := n.parent; p != nil; p = p.parent {
		count := 0
		for _, c := range p.child {
			if !c.leaf() {
				return
			}
			count += c.count
		}
		if count > t.split {
			return
		}

		children := p.child
		p.child = [4]*node{}
		for _, c := range children {
			for c.head != nil {
				it := c.head
				t.unlink(c, it)
				t.link(p, it)
			}
			t.freeNode(c)
		}
		t.merges++
	}
}

// Update re-files obj after its position changed. While the position stays
// within the current leaf (plus fuzz) nothing happens; otherwise the object
// is removed and inserted again from the root. Objects that are not in the
// tree are ignored. If the new position is outside the root rectangle the
// object ends up unindexed and ErrOutOfBounds is returned.
func (t *Tree) Update(obj Object) error {
	it := obj.QTreeItem()
	if it.tree == nil {
		return nil
	}
	n := t.resolve(it.node)
	x, y := obj.QTreePosition()
	if n.rect.ContainsFuzz(x, y, t.fuzz) {
		return nil
	}
	t.Remove(obj)
	return t.Insert(obj)
}

// Query appends every object whose position lies inside r.
func (t *Tree) Query(r Rect, out []Object) []Object {
	return t.queryRect(t.root, r, out)
}

func (t *Tree) queryRect(n *node, r Rect, out []Object) []Object {
	if !n.rect.Expand(t.fuzz).Intersects(r) {
		return out
	}
	if !n.leaf() {
		for _, c := range n.child {
			out = t.queryRect(c, r, out)
		}
		return out
	}
	for it := n.head; it != nil; it = it.next {
		if x, y := it.owner.QTreePosition(); r.Contains(x, y) {
			out = append(out, it.owner)
		}
	}
	return out
}

// QueryRadius appends every object strictly closer than radius to (x, y).
func (t *Tree) QueryRadius(x, y, radius float32, out []Object) []Object {
	r := NewRect(x-radius, y-radius, x+radius, y+radius)
	return t.queryRadius(t.root, r, x, y, radius*radius, out)
}

func (t *Tree) queryRadius(n *node, r Rect, x, y, r2 float32, out []Object) []Object {
	if !n.rect.Expand(t.fuzz).Intersects(r) {
		return out
	}
	if !n.leaf() {
		for _, c := range n.child {
			out = t.queryRadius(c, r, x, y, r2, out)
		}
		return out
	}
	for it := n.head; it != nil; it = it.next {
		ox, oy := it.owner.QTreePosition()
		if dx, dy := ox-x, oy-y; dx*dx+dy*dy < r2 {
			out = append(out, it.owner)
		}
	}
	return out
}

// QueryFunc calls fn for every object inside r.
func (t *Tree) QueryFunc(r Rect, fn func(Object)) {
	t.visit(t.root, r, func(o Object) {
		if x, y := o.QTreePosition(); r.Contains(x, y) {
			fn(o)
		}
	})
}

// QueryRadiusFunc calls fn for every object strictly closer than radius to
// (x, y).
func (t *Tree) QueryRadiusFunc(x, y, radius float32, fn func(Object)) {
	r2 := radius * radius
	t.visit(t.root, NewRect(x-radius, y-radius, x+radius, y+radius), func(o Object) {
		ox, oy := o.QTreePosition()
		if dx, dy := ox-x, oy-y; dx*dx+dy*dy < r2 {
			fn(o)
		}
	})
}

// visit calls fn for every resident of every leaf overlapping r.
func (t *Tree) visit(n *node, r Rect, fn func(Object)) {
	if !n.rect.Expand(t.fuzz).Intersects(r) {
		return
	}
	if !n.leaf() {
		for _, c := range n.child {
			t.visit(c, r, fn)
		}
		return
	}
	for it := n.head; it != nil; it = it.next {
		fn(it.owner)
	}
}

func (t *Tree) link(n *node, it *Item) {
	it.prev = nil
	it.next = n.head
	if n.head != nil {
		n.head.prev = it
	}
	n.head = it
	n.count++
	it.tree = t
	it.node = newNodeRef(n.index, t.gens[n.index])
}

func (t *Tree) unlink(n *node, it *Item) {
	if it.prev != nil {
		it.prev.next = it.next
	} else {
		n.head = it.next
	}
	if it.next != nil {
		it.next.prev = it.prev
	}
	it.prev = nil
	it.next = nil
	it.node = 0
	n.count--
}

func (t *Tree) newNode(parent *node, rect Rect) *node {
	n, idx := t.nodes.New()
	for idx >= len(t.gens) {
		t.gens = append(t.gens, 1)
	}
	n.rect = rect
	n.center = rect.Center()
	n.parent = parent
	n.index = idx
	if parent != nil {
		n.depth = parent.depth + 1
	}
	return n
}

func (t *Tree) freeNode(n *node) {
	if !n.leaf() || n.head != nil {
		panic("quadtree: freeing a node that is not an empty leaf")
	}
	t.gens[n.index]++
	if t.gens[n.index] == 0 {
		t.gens[n.index] = 1
	}
	t.nodes.FreeIndex(n.index)
}

func (t *Tree) resolve(ref NodeRef) *node {
	idx := ref.index()
	if ref == 0 || idx >= len(t.gens) || t.gens[idx] != ref.generation() {
		panic(fmt.Sprintf("quadtree: stale node handle %#x", uint64(ref)))
	}
	n := t.nodes.At(idx)
	if n == nil {
		panic(fmt.Sprintf("quadtree: node handle %#x points at a free slot", uint64(ref)))
	}
	return n
}
