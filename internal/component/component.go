// Package component holds the ship simulation's entity data. Each type lives
// in the pool of the system that owns it and returns itself there on Destroy.
package component

import (
	"github.com/robinei/space/internal/core/alloc"
	"github.com/robinei/space/internal/core/ecs"
)

const (
	TypeBody ecs.ComponentType = iota + 1
	TypeShip
	TypeSteering
	TypeTarget
)

// slot remembers where a component was allocated.
type slot[T any] struct {
	pool  *alloc.IterablePool[T]
	index int
}

// release returns the record to its pool. The record is zeroed, so this
// must be the last thing Destroy does.
func (s *slot[T]) release() {
	s.pool.FreeIndex(s.index)
}

// Slot returns the pool index the component occupies.
func (s *slot[T]) Slot() int { return s.index }
