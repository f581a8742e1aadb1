// Package hashtable implements a fixed-capacity open addressing table that
// tunes its own hash function.
//
// Keys are hashed with a multiplicative universal hash (a*key) >> (32-bits).
// The table remembers the longest linear probe any stored value needed
// (maxProbe) and stops every lookup there, so a table whose coefficient has
// been optimised down to maxProbe == 0 answers every lookup with exactly one
// bucket read. Optimize searches random odd coefficients for such a table.
//
// The zero value of T marks an empty bucket and can never be stored; T is
// expected to be a pointer or interface type.
package hashtable

import "fmt"

// DefaultCoefficient is the initial hash multiplier.
const DefaultCoefficient uint32 = 1870964089

// DefaultOptimizeAttempts bounds the coefficient search in Optimize.
const DefaultOptimizeAttempts = 1000

// KeyFunc extracts the integer key of a stored value.
type KeyFunc[T any] func(T) uint32

// Source produces random numbers for coefficient search.
// *math/rand/v2.Rand satisfies it.
type Source interface {
	Uint32() uint32
}

// Table is an open addressing hash table over caller-owned buckets.
// Insert, Lookup and Remove never allocate.
type Table[T comparable] struct {
	buckets  []T
	key      KeyFunc[T]
	a        uint32
	shift    uint32
	maxProbe uint32
	count    int
}

// Init prepares the table over buckets, whose length must be a power of two
// between 2 and 65536. Any previous contents of buckets are discarded.
func (t *Table[T]) Init(buckets []T, key KeyFunc[T]) {
	t.InitWithCoefficient(buckets, key, DefaultCoefficient)
}

// InitWithCoefficient is Init with an explicit hash multiplier.
func (t *Table[T]) InitWithCoefficient(buckets []T, key KeyFunc[T], a uint32) {
	n := len(buckets)
	if n < 2 || n > 1<<16 || n&(n-1) != 0 {
		panic(fmt.Sprintf("hashtable: bucket count %d is not a power of two in [2,65536]", n))
	}
	bits := uint32(0)
	for 1<<bits < n {
		bits++
	}
	t.buckets = buckets
	t.key = key
	t.shift = 32 - bits
	t.Clear(a)
}

// Clear empties the table. A non-zero a replaces the hash coefficient.
func (t *Table[T]) Clear(a uint32) {
	if a != 0 {
		t.a = a
	}
	t.maxProbe = 0
	t.count = 0
	clear(t.buckets)
}

func (t *Table[T]) hash(key uint32) uint32 {
	return (t.a * key) >> t.shift
}

// Insert stores v in the first free bucket of its probe sequence. It returns
// false when the table is full.
func (t *Table[T]) Insert(v T) bool {
	var zero T
	if v == zero {
		panic("hashtable: inserting the empty sentinel")
	}
	n := uint32(len(t.buckets))
	mask := n - 1
	h := t.hash(t.key(v))
	for p := uint32(0); p < n; p++ {
		i := (h + p) & mask
		if t.buckets[i] == zero {
			t.buckets[i] = v
			if p > t.maxProbe {
				t.maxProbe = p
			}
			t.count++
			return true
		}
	}
	return false
}

// Lookup returns the value stored under key, or the zero value. Only
// maxProbe+1 buckets are examined.
func (t *Table[T]) Lookup(key uint32) T {
	var zero T
	if len(t.buckets) == 0 {
		return zero
	}
	mask := uint32(len(t.buckets)) - 1
	h := t.hash(key)
	for p := uint32(0); p <= t.maxProbe; p++ {
		v := t.buckets[(h+p)&mask]
		if v != zero && t.key(v) == key {
			return v
		}
	}
	return zero
}

// Remove clears the bucket holding key and returns its value, or the zero
// value if key is absent. maxProbe is left as is; call Rehash to shrink it.
func (t *Table[T]) Remove(key uint32) T {
	var zero T
	if len(t.buckets) == 0 {
		return zero
	}
	mask := uint32(len(t.buckets)) - 1
	h := t.hash(key)
	for p := uint32(0); p <= t.maxProbe; p++ {
		i := (h + p) & mask
		v := t.buckets[i]
		if v != zero && t.key(v) == key {
			t.buckets[i] = zero
			t.count--
			return v
		}
	}
	return zero
}

// Rehash reinserts every value. A zero a keeps the current coefficient.
func (t *Table[T]) Rehash(a uint32) {
	var stack [256]T
	var values []T
	if t.count <= len(stack) {
		values = stack[:0]
	} else {
		values = make([]T, 0, t.count)
	}
	values = t.appendValues(values)
	t.Clear(a)
	for _, v := range values {
		t.Insert(v)
	}
}

// Optimize draws up to maxAttempts random odd coefficients and adopts any
// that lowers maxProbe, stopping as soon as maxProbe reaches zero. It never
// increases maxProbe.
func (t *Table[T]) Optimize(rng Source, maxAttempts int) {
	if t.maxProbe == 0 {
		return
	}
	var stack [256]T
	var values []T
	if t.count <= len(stack) {
		values = stack[:0]
	} else {
		values = make([]T, 0, t.count)
	}
	values = t.appendValues(values)

	best := t.a
	bestProbe := t.maxProbe
	for attempt := 0; attempt < maxAttempts && bestProbe > 0; attempt++ {
		a := (rng.Uint32() &^ 1) + 1
		if probe := t.simulate(values, a); probe < bestProbe {
			best, bestProbe = a, probe
		}
	}
	if best != t.a {
		t.Clear(best)
		for _, v := range values {
			t.Insert(v)
		}
	}
}

// simulate returns the maxProbe values would need under coefficient a,
// without touching the table.
func (t *Table[T]) simulate(values []T, a uint32) uint32 {
	n := uint32(len(t.buckets))
	mask := n - 1
	var usedStack [1024]uint64
	var used []uint64
	if words := (n + 63) / 64; int(words) <= len(usedStack) {
		used = usedStack[:words]
	} else {
		used = make([]uint64, words)
	}
	var maxProbe uint32
	for _, v := range values {
		h := (a * t.key(v)) >> t.shift
		for p := uint32(0); p < n; p++ {
			i := (h + p) & mask
			if used[i/64]&(1<<(i%64)) == 0 {
				used[i/64] |= 1 << (i % 64)
				if p > maxProbe {
					maxProbe = p
				}
				break
			}
		}
	}
	return maxProbe
}

func (t *Table[T]) appendValues(dst []T) []T {
	var zero T
	for _, v := range t.buckets {
		if v != zero {
			dst = append(dst, v)
		}
	}
	return dst
}

// Each calls fn for every stored value in bucket order.
func (t *Table[T]) Each(fn func(T)) {
	var zero T
	for _, v := range t.buckets {
		if v != zero {
			fn(v)
		}
	}
}

// Len returns the number of stored values.
func (t *Table[T]) Len() int { return t.count }

// Cap returns the number of buckets.
func (t *Table[T]) Cap() int { return len(t.buckets) }

// MaxProbe returns the longest probe distance any stored value needs.
func (t *Table[T]) MaxProbe() uint32 { return t.maxProbe }

// Coefficient returns the current hash multiplier.
func (t *Table[T]) Coefficient() uint32 { return t.a }
