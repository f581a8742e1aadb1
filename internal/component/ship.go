package component

import (
	"github.com/robinei/space/internal/core/alloc"
	"github.com/robinei/space/internal/core/ecs"
)

// Ship is the identity and lifetime of a ship. Callsign points into the
// ship system's arena.
type Ship struct {
	slot[Ship]

	Fleet    string
	Faction  int
	Callsign string
	MaxSpeed float32
	Lifetime float32 // seconds; 0 lives forever
	Age      float32

	entity *ecs.Entity
}

func NewShip(pool *alloc.IterablePool[Ship]) *Ship {
	s, i := pool.New()
	s.slot = slot[Ship]{pool: pool, index: i}
	return s
}

func (*Ship) Type() ecs.ComponentType { return TypeShip }

func (s *Ship) Init(_ *ecs.Manager, e *ecs.Entity) { s.entity = e }

func (s *Ship) Destroy(*ecs.Manager) { s.release() }

func (s *Ship) Entity() *ecs.Entity { return s.entity }

// Expired reports whether a mortal ship has outlived its lifetime.
func (s *Ship) Expired() bool {
	return s.Lifetime > 0 && s.Age >= s.Lifetime
}

// Hostile reports whether o flies for another faction.
func (s *Ship) Hostile(o *Ship) bool {
	return o != nil && o.Faction != s.Faction
}
