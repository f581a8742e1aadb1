package ecs

// Each2 iterates over live entities that have both component A and B.
// Systems that only touch their own component type should walk their own
// pool instead; this is for cross-cutting passes like stats and debugging.
func Each2[A, B Component](m *Manager, fn func(*Entity, A, B)) {
	ta, tb := typeOf[A](), typeOf[B]()
	m.Each(func(e *Entity) {
		a, ok := e.Component(ta).(A)
		if !ok {
			return
		}
		if b, ok := e.Component(tb).(B); ok {
			fn(e, a, b)
		}
	})
}

// Each3 iterates over live entities that have components A, B, and C.
func Each3[A, B, C Component](m *Manager, fn func(*Entity, A, B, C)) {
	ta, tb, tc := typeOf[A](), typeOf[B](), typeOf[C]()
	m.Each(func(e *Entity) {
		a, ok := e.Component(ta).(A)
		if !ok {
			return
		}
		b, ok := e.Component(tb).(B)
		if !ok {
			return
		}
		if c, ok := e.Component(tc).(C); ok {
			fn(e, a, b, c)
		}
	})
}
