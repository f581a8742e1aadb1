package alloc

import "unsafe"

const firstBlockSize = 16

// Pool hands out fixed-size records of type T from blocks that double in
// size, recycling freed records through a freelist. Records never move, so
// pointers stay valid until the record is freed.
type Pool[T any] struct {
	blocks   [][]T
	alive    [][]bool // parallel to blocks
	index    int      // next unused slot in the newest block
	freelist []*T
	live     int
}

// New returns a zeroed record.
func (p *Pool[T]) New() *T {
	p.live++
	if n := len(p.freelist); n > 0 {
		obj := p.freelist[n-1]
		p.freelist[n-1] = nil
		p.freelist = p.freelist[:n-1]
		b, off := p.locate(obj)
		p.alive[b][off] = true
		return obj
	}
	if len(p.blocks) == 0 || p.index == len(p.blocks[len(p.blocks)-1]) {
		size := firstBlockSize
		if len(p.blocks) > 0 {
			size = 2 * len(p.blocks[len(p.blocks)-1])
		}
		p.blocks = append(p.blocks, make([]T, size))
		p.alive = append(p.alive, make([]bool, size))
		p.index = 0
	}
	b := len(p.blocks) - 1
	obj := &p.blocks[b][p.index]
	p.alive[b][p.index] = true
	p.index++
	return obj
}

// Free resets the record to its zero value and makes it available to New.
// Freeing a record twice, or one the pool never handed out, panics.
func (p *Pool[T]) Free(obj *T) {
	b, off := p.locate(obj)
	if b < 0 {
		panic("alloc: freeing a record not owned by the pool")
	}
	if !p.alive[b][off] {
		panic("alloc: double free")
	}
	p.alive[b][off] = false
	var zero T
	*obj = zero
	p.freelist = append(p.freelist, obj)
	p.live--
}

// locate returns the block and offset holding obj, or -1, -1.
func (p *Pool[T]) locate(obj *T) (block, offset int) {
	size := unsafe.Sizeof(*obj)
	addr := uintptr(unsafe.Pointer(obj))
	for b, blk := range p.blocks {
		base := uintptr(unsafe.Pointer(&blk[0]))
		if size == 0 {
			if addr == base {
				return b, 0
			}
			continue
		}
		if addr >= base && addr < base+uintptr(len(blk))*size {
			return b, int((addr - base) / size)
		}
	}
	return -1, -1
}

// Len returns the number of records currently handed out.
func (p *Pool[T]) Len() int { return p.live }

// Cap returns the total number of slots across all blocks.
func (p *Pool[T]) Cap() int {
	n := 0
	for _, b := range p.blocks {
		n += len(b)
	}
	return n
}
