package alloc

import (
	"fmt"
	"unsafe"
)

const (
	// MaxBufferSize bounds both a single allocation and any arena buffer.
	MaxBufferSize = 2 * 1024 * 1024

	DefaultArenaSize   = 64 * 1024
	DefaultArenaGrowth = 150 // percent
)

// Arena is a bump allocator over a growing sequence of byte buffers.
// Memory handed out stays valid until Clear; nothing is freed individually.
// Buffers hold no pointers, so the arena is only suitable for plain bytes
// (strings, scratch data).
type Arena struct {
	initialSize  int
	growthFactor int

	curr    []byte
	used    int
	buffers [][]byte
	total   int
}

// NewArena panics if initialSize exceeds MaxBufferSize or growthFactor is
// outside [100, 500].
func NewArena(initialSize, growthFactor int) *Arena {
	if initialSize <= 0 || initialSize > MaxBufferSize {
		panic(fmt.Sprintf("alloc: arena initial size %d out of range", initialSize))
	}
	if growthFactor < 100 || growthFactor > 500 {
		panic(fmt.Sprintf("alloc: arena growth factor %d outside [100,500]", growthFactor))
	}
	return &Arena{initialSize: initialSize, growthFactor: growthFactor}
}

// Alloc returns size bytes from the current buffer, starting a new buffer
// when the current one cannot hold them.
func (a *Arena) Alloc(size int) []byte {
	if size < 0 || size > MaxBufferSize {
		panic(fmt.Sprintf("alloc: arena allocation of %d bytes", size))
	}
	if a.used+size > len(a.curr) {
		a.grow(size)
	}
	buf := a.curr[a.used : a.used+size : a.used+size]
	a.used += size
	a.total += size
	return buf
}

// Alloc0 is Alloc with the returned bytes zeroed.
func (a *Arena) Alloc0(size int) []byte {
	buf := a.Alloc(size)
	clear(buf)
	return buf
}

// CopyString copies s into arena memory. The result is valid until Clear.
func (a *Arena) CopyString(s string) string {
	if len(s) == 0 {
		return ""
	}
	buf := a.Alloc(len(s))
	copy(buf, s)
	return unsafe.String(&buf[0], len(buf))
}

// CopyBytes is CopyString for bytes formatted into a reused scratch buffer.
func (a *Arena) CopyBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	buf := a.Alloc(len(b))
	copy(buf, b)
	return unsafe.String(&buf[0], len(buf))
}

func (a *Arena) grow(size int) {
	next := a.initialSize
	if a.curr != nil {
		next = len(a.curr) * a.growthFactor / 100
		a.buffers = append(a.buffers, a.curr)
	}
	if next > MaxBufferSize {
		next = MaxBufferSize
	}
	if size > next {
		next = size
	}
	a.curr = make([]byte, next)
	a.used = 0
}

// Clear drops every buffer. All previously returned memory must be
// considered invalid afterwards.
func (a *Arena) Clear() {
	a.curr = nil
	a.used = 0
	a.buffers = nil
	a.total = 0
}

// Used returns the number of bytes handed out since the last Clear.
func (a *Arena) Used() int { return a.total }

// Buffers returns how many buffers the arena currently owns.
func (a *Arena) Buffers() int {
	if a.curr == nil {
		return 0
	}
	return len(a.buffers) + 1
}

// BufferSize returns the size of the buffer currently being filled.
func (a *Arena) BufferSize() int { return len(a.curr) }
