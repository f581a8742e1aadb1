package system

import (
	"math"
	"time"

	"github.com/robinei/space/internal/component"
	"github.com/robinei/space/internal/core/alloc"
	"github.com/robinei/space/internal/core/ecs"
	"github.com/robinei/space/internal/core/quadtree"
	coresys "github.com/robinei/space/internal/core/system"
	"go.uber.org/zap"
)

// BodySystem owns the Body pool and the quadtree. Each frame it integrates
// velocities, wraps positions into the world rectangle and re-files moved
// bodies in the tree, so the tree is consistent for the next frame's
// queries. Phase 4 (Integrate).
type BodySystem struct {
	m      *ecs.Manager
	tree   *quadtree.Tree
	bodies alloc.IterablePool[component.Body]
	log    *zap.Logger

	reindexed int // bodies re-inserted after dropping out of the tree
}

func NewBodySystem(m *ecs.Manager, tree *quadtree.Tree, log *zap.Logger) *BodySystem {
	return &BodySystem{m: m, tree: tree, log: log}
}

func (*BodySystem) Type() ecs.SystemType             { return SysBody }
func (*BodySystem) ComponentType() ecs.ComponentType { return component.TypeBody }
func (*BodySystem) Phase() coresys.Phase             { return coresys.PhaseIntegrate }

func (s *BodySystem) CreateComponent(*ecs.Manager) ecs.Component {
	return component.NewBody(&s.bodies, s.tree)
}

func (s *BodySystem) Tree() *quadtree.Tree { return s.tree }
func (s *BodySystem) Len() int             { return s.bodies.Len() }
func (s *BodySystem) Reindexed() int       { return s.reindexed }

func (s *BodySystem) Update(dt time.Duration) {
	sec := float32(dt.Seconds())
	bounds := s.tree.Bounds()
	s.bodies.Each(func(_ int, b *component.Body) {
		if b.Entity() == nil {
			return
		}
		b.Pos = b.Pos.Add(b.Vel.Mul(sec))
		b.Pos[0] = wrap(b.Pos[0], bounds.Min[0], bounds.Max[0])
		b.Pos[1] = wrap(b.Pos[1], bounds.Min[1], bounds.Max[1])

		if b.Inserted() {
			if err := b.Update(); err != nil {
				s.log.Warn("body left the tree", zap.Uint64("entity", uint64(b.Entity().ID())), zap.Error(err))
			}
			return
		}
		if err := s.tree.Insert(b); err == nil {
			s.reindexed++
		}
	})
}

// wrap folds v into the closed interval [lo, hi] toroidally.
func wrap(v, lo, hi float32) float32 {
	if v >= lo && v <= hi {
		return v
	}
	w := hi - lo
	v = lo + float32(math.Mod(float64(v-lo), float64(w)))
	if v < lo {
		v += w
	}
	return min(max(v, lo), hi)
}
