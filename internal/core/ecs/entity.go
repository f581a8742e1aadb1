package ecs

import "github.com/robinei/space/internal/core/hashtable"

// EntityID encodes a 32-bit pool slot index in the lower bits and a 32-bit
// generation in the upper bits. Generation increments on destroy to
// invalidate stale refs.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

// ComponentBlockBits sizes the per-block component table (8 buckets).
// Entities with more component types than that spill into overflow blocks.
const ComponentBlockBits = 3

const componentBlockSize = 1 << ComponentBlockBits

// ComponentBlock is one link of an entity's component chain: a small
// hash table keyed by component type plus a pointer to the next block.
// Blocks are independent, so a lookup must try each block in turn.
type ComponentBlock struct {
	slots [componentBlockSize]Component
	table hashtable.Table[Component]
	next  *ComponentBlock
}

func componentKey(c Component) uint32 { return uint32(c.Type()) }

// reset points the table at the block's own slots. Blocks live in pools and
// are never copied, so the self reference stays valid.
func (b *ComponentBlock) reset() {
	b.table.Init(b.slots[:], componentKey)
	b.next = nil
}

// Entity is a bag of components. It owns one embedded block and a
// possibly empty chain of overflow blocks.
type Entity struct {
	id    EntityID
	dying bool
	block ComponentBlock
}

func (e *Entity) ID() EntityID { return e.id }

// Dying reports whether the entity has been scheduled for deferred
// destruction. Its components are still valid until the manager frees it.
func (e *Entity) Dying() bool { return e.dying }

// Component returns the component of the given type, or nil.
func (e *Entity) Component(typ ComponentType) Component {
	for b := &e.block; b != nil; b = b.next {
		if c := b.table.Lookup(uint32(typ)); c != nil {
			return c
		}
	}
	return nil
}

// Has reports whether a component of the given type is attached.
func (e *Entity) Has(typ ComponentType) bool {
	return e.Component(typ) != nil
}

// Each calls fn for every attached component.
func (e *Entity) Each(fn func(Component)) {
	for b := &e.block; b != nil; b = b.next {
		b.table.Each(fn)
	}
}

// Len returns the number of attached components.
func (e *Entity) Len() int {
	n := 0
	for b := &e.block; b != nil; b = b.next {
		n += b.table.Len()
	}
	return n
}

// Blocks returns the length of the component chain, embedded block included.
func (e *Entity) Blocks() int {
	n := 0
	for b := &e.block; b != nil; b = b.next {
		n++
	}
	return n
}

// MaxProbe returns the worst probe length over the whole chain.
func (e *Entity) MaxProbe() uint32 {
	var m uint32
	for b := &e.block; b != nil; b = b.next {
		if p := b.table.MaxProbe(); p > m {
			m = p
		}
	}
	return m
}
