package hashtable

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

type item struct {
	key uint32
}

func itemKey(v *item) uint32 { return v.key }

func newTable(bits uint) *Table[*item] {
	t := &Table[*item]{}
	t.Init(make([]*item, 1<<bits), itemKey)
	return t
}

func TestInsertLookupRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for trial := 0; trial < 200; trial++ {
		tbl := newTable(3)
		inserted := map[uint32]*item{}
		for len(inserted) < tbl.Cap() {
			k := rng.Uint32N(64) + 1
			if _, dup := inserted[k]; dup {
				continue
			}
			v := &item{key: k}
			require.True(t, tbl.Insert(v))
			inserted[k] = v
		}
		require.Equal(t, tbl.Cap(), tbl.Len())
		require.False(t, tbl.Insert(&item{key: 1000}), "full table must reject")

		for k, v := range inserted {
			require.Same(t, v, tbl.Lookup(k))
		}
		for k := uint32(1); k <= 64; k++ {
			if _, ok := inserted[k]; !ok {
				require.Nil(t, tbl.Lookup(k))
			}
		}
	}
}

func TestRemove(t *testing.T) {
	tbl := newTable(3)
	for k := uint32(1); k <= 5; k++ {
		require.True(t, tbl.Insert(&item{key: k}))
	}

	v := tbl.Remove(3)
	require.NotNil(t, v)
	require.Equal(t, uint32(3), v.key)
	require.Nil(t, tbl.Lookup(3))
	require.Equal(t, 4, tbl.Len())

	require.Nil(t, tbl.Remove(3), "second remove is a no-op")
	require.Nil(t, tbl.Remove(99))

	tbl.Rehash(0)
	for _, k := range []uint32{1, 2, 4, 5} {
		require.NotNil(t, tbl.Lookup(k))
	}
}

func TestInsertSentinelPanics(t *testing.T) {
	tbl := newTable(2)
	require.Panics(t, func() { tbl.Insert(nil) })
}

func TestMaxProbeTracksCollisions(t *testing.T) {
	tbl := &Table[*item]{}
	// coefficient 1 with 8 buckets: every key below 2^29 hashes to bucket 0
	tbl.InitWithCoefficient(make([]*item, 8), itemKey, 1)
	for k := uint32(1); k <= 4; k++ {
		require.True(t, tbl.Insert(&item{key: k}))
	}
	require.Equal(t, uint32(3), tbl.MaxProbe())
	for k := uint32(1); k <= 4; k++ {
		require.NotNil(t, tbl.Lookup(k))
	}
}

func TestOptimizeNeverIncreasesMaxProbe(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	for trial := 0; trial < 100; trial++ {
		tbl := &Table[*item]{}
		tbl.InitWithCoefficient(make([]*item, 8), itemKey, 1)
		n := 2 + trial%7
		for k := 1; k <= n; k++ {
			require.True(t, tbl.Insert(&item{key: uint32(k * 13)}))
		}
		before := tbl.MaxProbe()
		tbl.Optimize(rng, DefaultOptimizeAttempts)
		require.LessOrEqual(t, tbl.MaxProbe(), before)
		require.Equal(t, n, tbl.Len())
		for k := 1; k <= n; k++ {
			require.NotNil(t, tbl.Lookup(uint32(k*13)))
		}
	}
}

func TestOptimizeReachesPerfectTable(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	tbl := &Table[*item]{}
	tbl.InitWithCoefficient(make([]*item, 8), itemKey, 1)
	for k := uint32(1); k <= 5; k++ {
		tbl.Insert(&item{key: k})
	}
	require.NotZero(t, tbl.MaxProbe())

	tbl.Optimize(rng, DefaultOptimizeAttempts)
	require.Zero(t, tbl.MaxProbe())
	a := tbl.Coefficient()
	require.Equal(t, uint32(1), a&1, "coefficient must stay odd")

	tbl.Optimize(rng, DefaultOptimizeAttempts)
	require.Equal(t, a, tbl.Coefficient(), "optimal table is left alone")
}

type countingSource struct {
	calls int
	rng   *rand.Rand
}

func (s *countingSource) Uint32() uint32 {
	s.calls++
	return s.rng.Uint32()
}

func TestOptimizeNoopWhenOptimal(t *testing.T) {
	tbl := newTable(3)
	tbl.Insert(&item{key: 1})
	src := &countingSource{rng: rand.New(rand.NewPCG(1, 1))}
	tbl.Optimize(src, DefaultOptimizeAttempts)
	require.Zero(t, src.calls)
}

func TestEachVisitsAll(t *testing.T) {
	tbl := newTable(4)
	for k := uint32(1); k <= 10; k++ {
		tbl.Insert(&item{key: k})
	}
	sum := uint32(0)
	tbl.Each(func(v *item) { sum += v.key })
	require.Equal(t, uint32(55), sum)
}

func TestInitRejectsBadSizes(t *testing.T) {
	tbl := &Table[*item]{}
	require.Panics(t, func() { tbl.Init(make([]*item, 6), itemKey) })
	require.Panics(t, func() { tbl.Init(make([]*item, 1), itemKey) })
}

func BenchmarkLookupOptimized(b *testing.B) {
	rng := rand.New(rand.NewPCG(9, 9))
	tbl := newTable(3)
	for k := uint32(1); k <= 6; k++ {
		tbl.Insert(&item{key: k})
	}
	tbl.Optimize(rng, DefaultOptimizeAttempts)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tbl.Lookup(uint32(i%6) + 1)
	}
}
