package ecs

import (
	"fmt"
	"math/rand/v2"

	"github.com/robinei/space/internal/core/alloc"
	"github.com/robinei/space/internal/core/hashtable"
	"go.uber.org/zap"
)

// DestroyPolicy selects what DestroyEntity does.
type DestroyPolicy int

const (
	// DestroyDeferred marks the entity dying and frees it at the end of the
	// following frame, so every system gets one full frame to observe
	// Dying() and drop references before the components disappear.
	DestroyDeferred DestroyPolicy = iota
	// DestroyImmediate frees the entity and its components on the spot.
	DestroyImmediate
)

func (p DestroyPolicy) String() string {
	switch p {
	case DestroyDeferred:
		return "deferred"
	case DestroyImmediate:
		return "immediate"
	}
	return fmt.Sprintf("DestroyPolicy(%d)", int(p))
}

// ParseDestroyPolicy maps a config string to a policy.
func ParseDestroyPolicy(s string) (DestroyPolicy, error) {
	switch s {
	case "", "deferred":
		return DestroyDeferred, nil
	case "immediate":
		return DestroyImmediate, nil
	}
	return 0, fmt.Errorf("unknown destroy policy %q", s)
}

// Manager owns every entity, the overflow component blocks, the system
// registry and the random source used to tune hash tables. All lifecycle
// transitions go through it. Single goroutine only.
type Manager struct {
	rnd      *rand.Rand
	log      *zap.Logger
	policy   DestroyPolicy
	entities alloc.IterablePool[Entity]
	blocks   alloc.Pool[ComponentBlock]
	registry *Registry

	// generations[i] is the generation of the entity currently or last in
	// pool slot i.
	generations []uint32

	killThisTime []*Entity
	killNextTime []*Entity
}

type Option func(*Manager)

// WithSeed seeds the manager's hash tuning PRNG.
func WithSeed(seed uint64) Option {
	return func(m *Manager) { m.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithRand supplies the hash tuning PRNG directly.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) { m.rnd = r }
}

func WithDestroyPolicy(p DestroyPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) { m.log = log }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		registry:     newRegistry(),
		generations:  make([]uint32, 0, 1024),
		killThisTime: make([]*Entity, 0, 64),
		killNextTime: make([]*Entity, 0, 64),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rnd == nil {
		m.rnd = rand.New(rand.NewPCG(1, 2))
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	return m
}

func (m *Manager) Registry() *Registry    { return m.registry }
func (m *Manager) Rand() hashtable.Source { return m.rnd }
func (m *Manager) Policy() DestroyPolicy  { return m.policy }
func (m *Manager) Log() *zap.Logger       { return m.log }
func (m *Manager) Len() int               { return m.entities.Len() }
func (m *Manager) OverflowBlocks() int    { return m.blocks.Len() }
func (m *Manager) Pending() int           { return len(m.killThisTime) + len(m.killNextTime) }

// CreateEntity returns a new entity with an empty component chain.
func (m *Manager) CreateEntity() *Entity {
	e, idx := m.entities.New()
	for idx >= len(m.generations) {
		m.generations = append(m.generations, 1)
	}
	e.id = NewEntityID(uint32(idx), m.generations[idx])
	e.block.reset()
	return e
}

// Resolve returns the live entity for id, or false if it has been freed.
// Dying entities still resolve until they are actually freed.
func (m *Manager) Resolve(id EntityID) (*Entity, bool) {
	idx := int(id.Index())
	if id.IsZero() || idx >= len(m.generations) || m.generations[idx] != id.Generation() {
		return nil, false
	}
	e := m.entities.At(idx)
	if e == nil {
		return nil, false
	}
	return e, true
}

// Alive reports whether id refers to an entity that has not been freed.
func (m *Manager) Alive(id EntityID) bool {
	_, ok := m.Resolve(id)
	return ok
}

// AddComponent asks the owning system for a component of type typ and
// attaches it. The component is uninitialised until InitEntity.
func (m *Manager) AddComponent(e *Entity, typ ComponentType) Component {
	owner := m.registry.Owner(typ)
	if owner == nil {
		panic(fmt.Sprintf("ecs: no system owns component type %d", typ))
	}
	c := owner.CreateComponent(m)
	m.InsertComponent(e, c)
	return c
}

// InsertComponent attaches an already allocated component. The first block
// with room takes it; when every block is full a new block from the block
// pool becomes the tail of the chain.
func (m *Manager) InsertComponent(e *Entity, c Component) {
	if e.Has(c.Type()) {
		panic(fmt.Sprintf("ecs: entity %d already has component type %d", e.id, c.Type()))
	}
	tail := &e.block
	for b := &e.block; b != nil; b = b.next {
		if b.table.Insert(c) {
			return
		}
		tail = b
	}
	nb := m.blocks.New()
	nb.reset()
	tail.next = nb
	nb.table.Insert(c)
}

// InitEntity runs Init on every component. Call it once, after the last
// component has been added and before any system touches the entity.
func (m *Manager) InitEntity(e *Entity) {
	e.Each(func(c Component) {
		c.Init(m, e)
	})
}

// OptimizeEntity tunes the hash coefficient of every block in e's chain.
// Meant to run once at spawn time so steady-state lookups take one probe.
func (m *Manager) OptimizeEntity(e *Entity) {
	for b := &e.block; b != nil; b = b.next {
		b.table.Optimize(m.rnd, hashtable.DefaultOptimizeAttempts)
	}
}

// DelComponent detaches and destroys the component of type typ, if any.
// The block it came from is rehashed so its max probe stays exact.
func (m *Manager) DelComponent(e *Entity, typ ComponentType) {
	for b := &e.block; b != nil; b = b.next {
		if c := b.table.Remove(uint32(typ)); c != nil {
			b.table.Rehash(0)
			c.Destroy(m)
			return
		}
	}
}

// DestroyEntity destroys e according to the manager's policy.
func (m *Manager) DestroyEntity(e *Entity) {
	if m.policy == DestroyImmediate {
		m.reallyDestroy(e)
		return
	}
	if e.dying {
		return
	}
	e.dying = true
	m.killNextTime = append(m.killNextTime, e)
}

// Update frees the entities marked dying during the previous frame and
// rotates the queues. Call it exactly once per frame, after every system
// has run.
func (m *Manager) Update() {
	for i, e := range m.killThisTime {
		m.reallyDestroy(e)
		m.killThisTime[i] = nil
	}
	if n := len(m.killThisTime); n > 0 {
		m.log.Debug("freed dying entities", zap.Int("count", n))
	}
	m.killThisTime, m.killNextTime = m.killNextTime, m.killThisTime[:0]
}

func (m *Manager) reallyDestroy(e *Entity) {
	idx := int(e.id.Index())
	if m.entities.At(idx) != e || m.generations[idx] != e.id.Generation() {
		panic(fmt.Sprintf("ecs: destroying entity %d which is not alive", e.id))
	}
	for b := &e.block; b != nil; {
		next := b.next
		b.table.Each(func(c Component) {
			c.Destroy(m)
		})
		if b != &e.block {
			m.blocks.Free(b)
		}
		b = next
	}
	m.generations[idx]++
	if m.generations[idx] == 0 {
		m.generations[idx] = 1
	}
	m.entities.FreeIndex(idx)
}

// Each visits every live entity, dying ones included.
func (m *Manager) Each(fn func(*Entity)) {
	m.entities.Each(func(_ int, e *Entity) {
		fn(e)
	})
}

// AddSystem registers s. Call during startup only.
func (m *Manager) AddSystem(s System) {
	m.registry.Register(s)
}

// System returns the system registered under typ, or nil.
func (m *Manager) System(typ SystemType) System {
	return m.registry.System(typ)
}

// OptimizeSystems tunes the registry tables. Call once after startup.
func (m *Manager) OptimizeSystems() {
	m.registry.Optimize(m.rnd)
}

// GetSystem returns the registered system of type T. A missing system is a
// programming error.
func GetSystem[T System](m *Manager) T {
	var zero T
	s, ok := m.System(zero.Type()).(T)
	if !ok {
		panic(fmt.Sprintf("ecs: system %T (type %d) not registered", zero, zero.Type()))
	}
	return s
}

// Close destroys every entity immediately, pending ones included.
func (m *Manager) Close() {
	m.killThisTime = m.killThisTime[:0]
	m.killNextTime = m.killNextTime[:0]
	m.entities.Each(func(_ int, e *Entity) {
		m.reallyDestroy(e)
	})
}
