package system

import (
	"context"
	"time"

	"github.com/robinei/space/internal/core/ecs"
	coresys "github.com/robinei/space/internal/core/system"
	"github.com/robinei/space/internal/metrics"
	"github.com/robinei/space/internal/persist"
	"go.uber.org/zap"
)

// FrameRecorder persists sampled frame statistics. *persist.Recorder
// implements it.
type FrameRecorder interface {
	RecordFrame(ctx context.Context, s persist.FrameStats) error
}

// StatsSystem samples the manager, the quadtree and the other systems once
// per frame, publishes the sample to Prometheus and hands every Nth one to
// the recorder. Either sink may be nil. Phase 5 (Observe).
type StatsSystem struct {
	m        *ecs.Manager
	metrics  *metrics.Collector
	recorder FrameRecorder
	every    int
	log      *zap.Logger

	bodies   *BodySystem
	ships    *ShipSystem
	steering *SteeringSystem
	targets  *TargetSystem
	spawn    *SpawnSystem

	frame    uint64
	last     persist.FrameStats
	lastQ    int
	lastN    int
	acquired int
	lost     int
	failures int
}

func NewStatsSystem(m *ecs.Manager, c *metrics.Collector, rec FrameRecorder, every int, log *zap.Logger) *StatsSystem {
	return &StatsSystem{m: m, metrics: c, recorder: rec, every: max(every, 1), log: log}
}

func (s *StatsSystem) Phase() coresys.Phase { return coresys.PhaseObserve }

// Last returns the most recent sample.
func (s *StatsSystem) Last() persist.FrameStats { return s.last }

// Failures returns how many samples the recorder rejected.
func (s *StatsSystem) Failures() int { return s.failures }

func (s *StatsSystem) Update(_ time.Duration) {
	if s.bodies == nil {
		s.bodies = ecs.GetSystem[*BodySystem](s.m)
		s.ships = ecs.GetSystem[*ShipSystem](s.m)
		s.steering = ecs.GetSystem[*SteeringSystem](s.m)
		s.targets = ecs.GetSystem[*TargetSystem](s.m)
		s.spawn = ecs.GetSystem[*SpawnSystem](s.m)
	}

	st := s.bodies.Tree().Stats()
	cur := persist.FrameStats{
		Frame:          s.frame,
		Entities:       s.m.Len(),
		Ships:          s.ships.Len(),
		PendingDestroy: s.m.Pending(),
		OverflowBlocks: s.m.OverflowBlocks(),
		TreeNodes:      st.Nodes,
		TreeLeaves:     st.Leaves,
		TreeDepth:      st.MaxDepth,
		TreeSplits:     st.Splits,
		TreeMerges:     st.Merges,
		Spawned:        s.spawn.Spawned(),
		Expired:        s.ships.Expired(),
	}
	if s.metrics != nil {
		s.publish(cur)
	}
	if s.recorder != nil && s.frame%uint64(s.every) == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.recorder.RecordFrame(ctx, cur); err != nil {
			s.failures++
			s.log.Warn("frame stats not recorded", zap.Uint64("frame", s.frame), zap.Error(err))
		}
		cancel()
	}
	s.last = cur
	s.frame++
}

func (s *StatsSystem) publish(cur persist.FrameStats) {
	c, prev := s.metrics, s.last
	c.Entities.Set(float64(cur.Entities))
	c.Ships.Set(float64(cur.Ships))
	c.PendingDestroy.Set(float64(cur.PendingDestroy))
	c.OverflowBlocks.Set(float64(cur.OverflowBlocks))
	c.ArenaBytes.Set(float64(s.ships.Arena().Used()))
	c.TreeNodes.Set(float64(cur.TreeNodes))
	c.TreeLeaves.Set(float64(cur.TreeLeaves))
	c.TreeDepth.Set(float64(cur.TreeDepth))
	c.TreeSplits.Add(float64(cur.TreeSplits - prev.TreeSplits))
	c.TreeMerges.Add(float64(cur.TreeMerges - prev.TreeMerges))
	c.ShipsSpawned.Add(float64(cur.Spawned - prev.Spawned))
	c.ShipsExpired.Add(float64(cur.Expired - prev.Expired))

	q, n := s.steering.Queries()
	if dq := q - s.lastQ; dq > 0 {
		c.Neighbors.Observe(float64(n-s.lastN) / float64(dq))
	}
	s.lastQ, s.lastN = q, n

	acquired, lost := s.targets.Counts()
	c.TargetsChanged.WithLabelValues("acquired").Add(float64(acquired - s.acquired))
	c.TargetsChanged.WithLabelValues("lost").Add(float64(lost - s.lost))
	s.acquired, s.lost = acquired, lost
}
