package ecs

import (
	"fmt"

	"github.com/robinei/space/internal/core/hashtable"
)

// SystemType tags a concrete system. Tags must be non-zero and unique.
type SystemType uint32

// System is a singleton registered with the manager at startup.
type System interface {
	Type() SystemType
}

// ComponentSystem is a System that owns the storage of one component type.
type ComponentSystem interface {
	System
	ComponentType() ComponentType
	CreateComponent(m *Manager) Component
}

// RegistryBits sizes the system and component-owner tables (256 buckets).
const RegistryBits = 8

// Registry holds the registered systems and, for each component type, the
// system that allocates it. Both are fixed hash tables tuned once by
// Optimize after startup.
type Registry struct {
	systemSlots [1 << RegistryBits]System
	systems     hashtable.Table[System]
	ownerSlots  [1 << RegistryBits]ComponentSystem
	owners      hashtable.Table[ComponentSystem]
}

func newRegistry() *Registry {
	r := &Registry{}
	r.systems.Init(r.systemSlots[:], func(s System) uint32 { return uint32(s.Type()) })
	r.owners.Init(r.ownerSlots[:], func(s ComponentSystem) uint32 { return uint32(s.ComponentType()) })
	return r
}

// Register adds a system. Registering a duplicate type or overflowing the
// table is a programming error.
func (r *Registry) Register(s System) {
	if s.Type() == 0 {
		panic("ecs: system type 0 is reserved")
	}
	if r.systems.Lookup(uint32(s.Type())) != nil {
		panic(fmt.Sprintf("ecs: system type %d registered twice", s.Type()))
	}
	if !r.systems.Insert(s) {
		panic("ecs: system table full")
	}
	if cs, ok := s.(ComponentSystem); ok {
		if r.owners.Lookup(uint32(cs.ComponentType())) != nil {
			panic(fmt.Sprintf("ecs: component type %d already has an owning system", cs.ComponentType()))
		}
		if !r.owners.Insert(cs) {
			panic("ecs: component owner table full")
		}
	}
}

// System returns the system registered under typ, or nil.
func (r *Registry) System(typ SystemType) System {
	return r.systems.Lookup(uint32(typ))
}

// Owner returns the system that allocates components of typ, or nil.
func (r *Registry) Owner(typ ComponentType) ComponentSystem {
	return r.owners.Lookup(uint32(typ))
}

// Optimize tunes both tables.
func (r *Registry) Optimize(rng hashtable.Source) {
	r.systems.Optimize(rng, hashtable.DefaultOptimizeAttempts)
	r.owners.Optimize(rng, hashtable.DefaultOptimizeAttempts)
}

// MaxProbe returns the worst probe length of either table.
func (r *Registry) MaxProbe() uint32 {
	return max(r.systems.MaxProbe(), r.owners.MaxProbe())
}

// Len returns the number of registered systems.
func (r *Registry) Len() int { return r.systems.Len() }
