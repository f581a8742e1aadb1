package alloc

import (
	"fmt"
	"math/bits"
	"unsafe"
)

type iterBlock[T any] struct {
	objects []T
	alive   []byte
	used    int // slots ever handed out from this block
}

// IterablePool is a Pool that can also visit its live records. Every record
// has a stable slot index; block k holds 16<<k slots starting at index
// 16*(2^k - 1), so an index maps back to its block without a search.
type IterablePool[T any] struct {
	blocks   []*iterBlock[T]
	freelist []int
	live     int
}

func blockOf(i int) (block, offset int) {
	block = bits.Len(uint(i/firstBlockSize+1)) - 1
	offset = i - firstBlockSize*((1<<block)-1)
	return block, offset
}

// New returns a zeroed record and its slot index.
func (p *IterablePool[T]) New() (*T, int) {
	p.live++
	if n := len(p.freelist); n > 0 {
		i := p.freelist[n-1]
		p.freelist = p.freelist[:n-1]
		b, off := blockOf(i)
		blk := p.blocks[b]
		blk.alive[off] = 1
		return &blk.objects[off], i
	}
	if len(p.blocks) == 0 || p.blocks[len(p.blocks)-1].used == len(p.blocks[len(p.blocks)-1].objects) {
		size := firstBlockSize << len(p.blocks)
		p.blocks = append(p.blocks, &iterBlock[T]{
			objects: make([]T, size),
			alive:   make([]byte, size),
		})
	}
	b := len(p.blocks) - 1
	blk := p.blocks[b]
	off := blk.used
	blk.used++
	blk.alive[off] = 1
	return &blk.objects[off], firstBlockSize*((1<<b)-1) + off
}

// At returns the live record at slot i, or nil.
func (p *IterablePool[T]) At(i int) *T {
	if i < 0 {
		return nil
	}
	b, off := blockOf(i)
	if b >= len(p.blocks) {
		return nil
	}
	blk := p.blocks[b]
	if off >= blk.used || blk.alive[off] == 0 {
		return nil
	}
	return &blk.objects[off]
}

// IndexOf returns the slot index of a record owned by the pool, or -1.
func (p *IterablePool[T]) IndexOf(obj *T) int {
	var zero T
	size := unsafe.Sizeof(zero)
	addr := uintptr(unsafe.Pointer(obj))
	for b, blk := range p.blocks {
		if blk.used == 0 {
			continue
		}
		base := uintptr(unsafe.Pointer(&blk.objects[0]))
		if size == 0 {
			if addr == base {
				return firstBlockSize * ((1 << b) - 1)
			}
			continue
		}
		if addr >= base && addr < base+uintptr(blk.used)*size {
			return firstBlockSize*((1<<b)-1) + int((addr-base)/size)
		}
	}
	return -1
}

// Free releases the record. Freeing a record that is not live panics.
func (p *IterablePool[T]) Free(obj *T) {
	i := p.IndexOf(obj)
	if i < 0 {
		panic("alloc: freeing a record not owned by the pool")
	}
	p.FreeIndex(i)
}

// FreeIndex releases the record at slot i.
func (p *IterablePool[T]) FreeIndex(i int) {
	b, off := blockOf(i)
	if b >= len(p.blocks) || off >= p.blocks[b].used || p.blocks[b].alive[off] == 0 {
		panic(fmt.Sprintf("alloc: double free of slot %d", i))
	}
	blk := p.blocks[b]
	var zero T
	blk.objects[off] = zero
	blk.alive[off] = 0
	p.freelist = append(p.freelist, i)
	p.live--
}

// Each visits live records in slot order. fn may free the record it is
// given; records created during the walk may or may not be visited.
func (p *IterablePool[T]) Each(fn func(i int, obj *T)) {
	for b, blk := range p.blocks {
		base := firstBlockSize * ((1 << b) - 1)
		for off := 0; off < blk.used; off++ {
			if blk.alive[off] != 0 {
				fn(base+off, &blk.objects[off])
			}
		}
	}
}

// Len returns the number of live records.
func (p *IterablePool[T]) Len() int { return p.live }

// Cap returns the total number of slots across all blocks.
func (p *IterablePool[T]) Cap() int {
	n := 0
	for _, blk := range p.blocks {
		n += len(blk.objects)
	}
	return n
}
