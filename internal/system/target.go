package system

import (
	"time"

	"github.com/robinei/space/internal/component"
	"github.com/robinei/space/internal/core/alloc"
	"github.com/robinei/space/internal/core/ecs"
	"github.com/robinei/space/internal/core/event"
	"github.com/robinei/space/internal/core/quadtree"
	coresys "github.com/robinei/space/internal/core/system"
)

// loseRangeFactor is how far beyond its acquisition radius a target may
// drift before it is dropped.
const loseRangeFactor = 1.5

// TargetSystem owns the Target pool. It drops targets that are dying, freed
// or out of range and gives idle ships the nearest hostile within their
// acquisition radius. Phase 2 (Think), after ShipSystem.
type TargetSystem struct {
	m       *ecs.Manager
	bus     *event.Bus
	tree    *quadtree.Tree
	targets alloc.IterablePool[component.Target]
	buf     []quadtree.Object

	acquired int
	lost     int
}

func NewTargetSystem(m *ecs.Manager, bus *event.Bus, tree *quadtree.Tree) *TargetSystem {
	return &TargetSystem{
		m:    m,
		bus:  bus,
		tree: tree,
		buf:  make([]quadtree.Object, 0, 64),
	}
}

func (*TargetSystem) Type() ecs.SystemType             { return SysTarget }
func (*TargetSystem) ComponentType() ecs.ComponentType { return component.TypeTarget }
func (*TargetSystem) Phase() coresys.Phase             { return coresys.PhaseThink }

func (s *TargetSystem) CreateComponent(*ecs.Manager) ecs.Component {
	return component.NewTarget(&s.targets)
}

func (s *TargetSystem) Len() int { return s.targets.Len() }

// Counts returns how many targets have been acquired and lost so far.
func (s *TargetSystem) Counts() (acquired, lost int) { return s.acquired, s.lost }

func (s *TargetSystem) Update(time.Duration) {
	s.targets.Each(func(_ int, t *component.Target) {
		e := t.Entity()
		if e == nil || e.Dying() || t.Range <= 0 {
			return
		}
		if t.Has() {
			if s.keep(t) {
				return
			}
			event.Emit(s.bus, event.TargetLost{Ship: e.ID(), Target: t.ID})
			t.ID = 0
			s.lost++
		}
		s.acquire(t)
	})
}

// keep reports whether t's current target is still worth chasing.
func (s *TargetSystem) keep(t *component.Target) bool {
	te, ok := s.m.Resolve(t.ID)
	if !ok || te.Dying() {
		return false
	}
	tb := ecs.Get[*component.Body](te)
	if tb == nil {
		return false
	}
	d := tb.Pos.Sub(t.Body.Pos)
	limit := t.Range * loseRangeFactor
	return d[0]*d[0]+d[1]*d[1] < limit*limit
}

func (s *TargetSystem) acquire(t *component.Target) {
	pos := t.Body.Pos
	s.buf = s.tree.QueryRadius(pos[0], pos[1], t.Range, s.buf[:0])

	var best *component.Body
	var bestD2 float32
	for _, o := range s.buf {
		b := component.BodyOf(o)
		if b == nil || b == t.Body || b.Entity().Dying() {
			continue
		}
		if !t.Ship.Hostile(ecs.Get[*component.Ship](b.Entity())) {
			continue
		}
		d := b.Pos.Sub(pos)
		d2 := d[0]*d[0] + d[1]*d[1]
		if best == nil || d2 < bestD2 || (d2 == bestD2 && b.Entity().ID() < best.Entity().ID()) {
			best, bestD2 = b, d2
		}
	}
	if best == nil {
		return
	}
	t.ID = best.Entity().ID()
	s.acquired++
	event.Emit(s.bus, event.TargetAcquired{
		Ship:   t.Entity().ID(),
		Target: t.ID,
		Range:  best.Pos.Sub(pos).Vec2().Len(),
	})
}
