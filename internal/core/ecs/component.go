package ecs

import "fmt"

// ComponentType tags a concrete component type. Tags must be non-zero and
// unique across all registered component types.
type ComponentType uint32

// Component is a piece of entity data stored in its owning system's pool.
//
// Construction is two-phase: the owning system allocates the component, and
// once every component of the entity is attached the manager calls Init, so
// Init may resolve sibling components. Destroy returns the component to its
// pool.
//
// Type must not dereference its receiver: the generic helpers call it on a
// nil value to learn the tag of T.
type Component interface {
	Type() ComponentType
	Init(m *Manager, e *Entity)
	Destroy(m *Manager)
}

func typeOf[T Component]() ComponentType {
	var zero T
	return zero.Type()
}

// Get returns e's component of type T, or the zero T.
func Get[T Component](e *Entity) T {
	c, _ := e.Component(typeOf[T]()).(T)
	return c
}

// Add allocates a T from its owning system and attaches it to e.
func Add[T Component](m *Manager, e *Entity) T {
	c := m.AddComponent(e, typeOf[T]())
	t, ok := c.(T)
	if !ok {
		panic(fmt.Sprintf("ecs: system for component type %d created %T", typeOf[T](), c))
	}
	return t
}

// Del detaches and destroys e's component of type T, if any.
func Del[T Component](m *Manager, e *Entity) {
	m.DelComponent(e, typeOf[T]())
}
