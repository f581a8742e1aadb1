package system

import (
	"math/rand/v2"

	"github.com/robinei/space/internal/core/ecs"
	"github.com/robinei/space/internal/core/event"
	"github.com/robinei/space/internal/core/quadtree"
	coresys "github.com/robinei/space/internal/core/system"
	"github.com/robinei/space/internal/data"
	"github.com/robinei/space/internal/metrics"
	"go.uber.org/zap"
)

// Deps are the shared services the systems are built from. Weights, Quota,
// Metrics and Recorder are optional.
type Deps struct {
	Manager     *ecs.Manager
	Bus         *event.Bus
	Tree        *quadtree.Tree
	Scenario    *data.Scenario
	Rand        *rand.Rand
	Weights     WeightSource
	Quota       QuotaSource
	Metrics     *metrics.Collector
	Recorder    FrameRecorder
	RecordEvery int
	Log         *zap.Logger
}

// Systems is the full set of frame systems, registered with both the
// entity manager and the runner.
type Systems struct {
	Runner   *coresys.Runner
	Event    *EventSystem
	Spawn    *SpawnSystem
	Ship     *ShipSystem
	Target   *TargetSystem
	Steering *SteeringSystem
	Body     *BodySystem
	Stats    *StatsSystem
	Cleanup  *CleanupSystem
}

// Register builds every system, registers the ecs ones with the manager,
// tunes the manager's system tables and returns a runner ordered by phase.
func Register(d Deps) *Systems {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Systems{
		Runner:   coresys.NewRunner(),
		Event:    NewEventSystem(d.Bus),
		Spawn:    NewSpawnSystem(d.Manager, d.Bus, d.Scenario, d.Rand, d.Quota, log.Named("spawn")),
		Ship:     NewShipSystem(d.Manager, d.Bus, log.Named("ship")),
		Target:   NewTargetSystem(d.Manager, d.Bus, d.Tree),
		Steering: NewSteeringSystem(d.Manager, d.Tree, d.Weights),
		Body:     NewBodySystem(d.Manager, d.Tree, log.Named("body")),
		Stats:    NewStatsSystem(d.Manager, d.Metrics, d.Recorder, d.RecordEvery, log.Named("stats")),
		Cleanup:  NewCleanupSystem(d.Manager),
	}

	for _, sys := range []ecs.System{s.Body, s.Ship, s.Steering, s.Target, s.Spawn} {
		d.Manager.AddSystem(sys)
	}
	d.Manager.OptimizeSystems()

	// ShipSystem before TargetSystem: expiring ships are dying before
	// anyone picks them as a target.
	for _, sys := range []coresys.System{s.Event, s.Spawn, s.Ship, s.Target, s.Steering, s.Body, s.Stats, s.Cleanup} {
		s.Runner.Register(sys)
	}
	return s
}
