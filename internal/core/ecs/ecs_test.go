package ecs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// --- Test components ---

type base struct {
	owner     *store
	initCalls int
	entity    *Entity
}

func (b *base) Init(_ *Manager, e *Entity) {
	b.initCalls++
	b.entity = e
}

func (b *base) Destroy(_ *Manager) { b.owner.destroyed++ }

type compA struct{ base }
type compB struct {
	base
	sibling *compA
}
type compC struct{ base }

func (*compA) Type() ComponentType { return 1 }
func (*compB) Type() ComponentType { return 2 }
func (*compC) Type() ComponentType { return 3 }

// compB resolves its sibling during Init, after all components exist.
func (c *compB) Init(m *Manager, e *Entity) {
	c.base.Init(m, e)
	c.sibling = Get[*compA](e)
}

// numbered is used where many distinct types are needed.
type numbered struct {
	typ       ComponentType
	destroyed *int
}

func (n *numbered) Type() ComponentType    { return n.typ }
func (n *numbered) Init(*Manager, *Entity) {}
func (n *numbered) Destroy(*Manager)       { *n.destroyed++ }

// --- Test systems ---

type store struct {
	ctype     ComponentType
	newFn     func(*store) Component
	created   int
	destroyed int
}

func (s *store) ComponentType() ComponentType { return s.ctype }

func (s *store) CreateComponent(*Manager) Component {
	s.created++
	return s.newFn(s)
}

type sysA struct{ store }
type sysB struct{ store }
type sysC struct{ store }
type sysMissing struct{}

func (*sysA) Type() SystemType       { return 10 }
func (*sysB) Type() SystemType       { return 11 }
func (*sysC) Type() SystemType       { return 12 }
func (*sysMissing) Type() SystemType { return 99 }

func setupManager(t *testing.T, policy DestroyPolicy) (*Manager, *sysA, *sysB, *sysC) {
	t.Helper()
	m := NewManager(WithSeed(7), WithDestroyPolicy(policy))
	a := &sysA{store{ctype: 1, newFn: func(s *store) Component { return &compA{base{owner: s}} }}}
	b := &sysB{store{ctype: 2, newFn: func(s *store) Component { return &compB{base: base{owner: s}} }}}
	c := &sysC{store{ctype: 3, newFn: func(s *store) Component { return &compC{base{owner: s}} }}}
	m.AddSystem(a)
	m.AddSystem(b)
	m.AddSystem(c)
	m.OptimizeSystems()
	return m, a, b, c
}

// --- Tests ---

func TestComponentRoundTrip(t *testing.T) {
	m, _, sb, _ := setupManager(t, DestroyImmediate)
	e := m.CreateEntity()

	a := Add[*compA](m, e)
	b := Add[*compB](m, e)
	c := Add[*compC](m, e)
	require.Zero(t, a.initCalls, "components start uninitialised")

	m.InitEntity(e)
	m.OptimizeEntity(e)
	require.Equal(t, 1, a.initCalls)
	require.Equal(t, 1, b.initCalls)
	require.Same(t, a, b.sibling)
	require.Same(t, e, c.entity)

	require.Same(t, a, Get[*compA](e))
	require.Same(t, b, Get[*compB](e))
	require.Same(t, c, Get[*compC](e))
	require.Equal(t, 3, e.Len())
	require.Zero(t, e.MaxProbe())

	Del[*compB](m, e)
	require.Nil(t, Get[*compB](e))
	require.Equal(t, 1, sb.destroyed)
	require.Same(t, a, Get[*compA](e))
	require.Same(t, c, Get[*compC](e))

	Del[*compB](m, e)
	require.Equal(t, 1, sb.destroyed, "deleting an absent component is a no-op")
}

func TestChainGrowth(t *testing.T) {
	m := NewManager(WithSeed(3), WithDestroyPolicy(DestroyImmediate))
	e := m.CreateEntity()
	destroyed := 0
	comps := make([]*numbered, 20)
	for i := range comps {
		comps[i] = &numbered{typ: ComponentType(100 + i*7), destroyed: &destroyed}
		m.InsertComponent(e, comps[i])
	}
	require.Equal(t, 3, e.Blocks())
	require.Equal(t, 2, m.OverflowBlocks())
	for _, c := range comps {
		require.Same(t, c, e.Component(c.typ))
	}

	before := e.MaxProbe()
	m.OptimizeEntity(e)
	require.LessOrEqual(t, e.MaxProbe(), before)
	for _, c := range comps {
		require.Same(t, c, e.Component(c.typ))
	}
	require.Nil(t, e.Component(5))

	m.DestroyEntity(e)
	require.Equal(t, 20, destroyed)
	require.Zero(t, m.OverflowBlocks())
	require.Zero(t, m.Len())
}

func TestDuplicateComponentPanics(t *testing.T) {
	m, _, _, _ := setupManager(t, DestroyImmediate)
	e := m.CreateEntity()
	Add[*compA](m, e)
	require.Panics(t, func() { Add[*compA](m, e) })
}

func TestUnownedComponentPanics(t *testing.T) {
	m := NewManager()
	e := m.CreateEntity()
	require.Panics(t, func() { m.AddComponent(e, 42) })
}

func TestImmediateDestroy(t *testing.T) {
	m, sa, sb, _ := setupManager(t, DestroyImmediate)
	e := m.CreateEntity()
	Add[*compA](m, e)
	Add[*compB](m, e)
	m.InitEntity(e)
	id := e.ID()

	m.DestroyEntity(e)
	require.Equal(t, 1, sa.destroyed)
	require.Equal(t, 1, sb.destroyed)
	require.False(t, m.Alive(id))
	require.Zero(t, m.Len())
}

func TestDeferredDestroyLastsOneFrame(t *testing.T) {
	m, sa, _, _ := setupManager(t, DestroyDeferred)
	e := m.CreateEntity()
	a := Add[*compA](m, e)
	m.InitEntity(e)
	id := e.ID()

	// frame N: marked dying, still fully populated
	m.DestroyEntity(e)
	m.DestroyEntity(e)
	require.True(t, e.Dying())
	require.Same(t, a, Get[*compA](e))
	m.Update()

	// frame N+1: other systems still see it
	got, ok := m.Resolve(id)
	require.True(t, ok)
	require.True(t, got.Dying())
	require.Zero(t, sa.destroyed)
	m.Update()

	require.False(t, m.Alive(id))
	require.Equal(t, 1, sa.destroyed)
	require.Zero(t, m.Pending())
}

func TestEntityIDGenerations(t *testing.T) {
	m := NewManager(WithDestroyPolicy(DestroyImmediate))
	e1 := m.CreateEntity()
	id1 := e1.ID()
	require.False(t, id1.IsZero())

	m.DestroyEntity(e1)
	e2 := m.CreateEntity()
	id2 := e2.ID()
	require.Equal(t, id1.Index(), id2.Index(), "slot is reused")
	require.NotEqual(t, id1.Generation(), id2.Generation())

	_, ok := m.Resolve(id1)
	require.False(t, ok)
	got, ok := m.Resolve(id2)
	require.True(t, ok)
	require.Same(t, e2, got)
}

func TestSystems(t *testing.T) {
	m, sa, _, _ := setupManager(t, DestroyDeferred)
	require.Same(t, sa, GetSystem[*sysA](m))
	require.Nil(t, m.System(99))
	require.Panics(t, func() { GetSystem[*sysMissing](m) })
	require.Panics(t, func() { m.AddSystem(&sysA{}) })
	require.Equal(t, 3, m.Registry().Len())
	require.Zero(t, m.Registry().MaxProbe())
}

func TestEach2(t *testing.T) {
	m, _, _, _ := setupManager(t, DestroyImmediate)
	for i := 0; i < 6; i++ {
		e := m.CreateEntity()
		Add[*compA](m, e)
		if i%2 == 0 {
			Add[*compC](m, e)
		}
		m.InitEntity(e)
	}
	n := 0
	Each2(m, func(e *Entity, a *compA, c *compC) {
		require.Same(t, e, a.entity)
		require.Same(t, e, c.entity)
		n++
	})
	require.Equal(t, 3, n)
}

func TestEach3(t *testing.T) {
	m, _, _, _ := setupManager(t, DestroyImmediate)
	for i := 0; i < 6; i++ {
		e := m.CreateEntity()
		Add[*compA](m, e)
		Add[*compC](m, e)
		if i < 2 {
			Add[*compB](m, e)
		}
		m.InitEntity(e)
	}
	n := 0
	Each3(m, func(e *Entity, a *compA, b *compB, c *compC) {
		require.Same(t, a, b.sibling)
		require.Same(t, e, c.entity)
		n++
	})
	require.Equal(t, 2, n)
}

func TestCloseDestroysEverything(t *testing.T) {
	m, sa, _, _ := setupManager(t, DestroyDeferred)
	for i := 0; i < 10; i++ {
		e := m.CreateEntity()
		Add[*compA](m, e)
		if i < 3 {
			m.DestroyEntity(e)
		}
	}
	m.Close()
	require.Equal(t, 10, sa.destroyed)
	require.Zero(t, m.Len())
}

func BenchmarkGetComponent(b *testing.B) {
	m := NewManager(WithDestroyPolicy(DestroyImmediate))
	destroyed := 0
	e := m.CreateEntity()
	for i := 0; i < 6; i++ {
		m.InsertComponent(e, &numbered{typ: ComponentType(i + 1), destroyed: &destroyed})
	}
	m.OptimizeEntity(e)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Component(ComponentType(i%6 + 1))
	}
}
