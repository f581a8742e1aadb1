package system

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/robinei/space/internal/component"
	"github.com/robinei/space/internal/core/ecs"
	"github.com/robinei/space/internal/core/event"
	coresys "github.com/robinei/space/internal/core/system"
	"github.com/robinei/space/internal/data"
	"go.uber.org/zap"
)

// QuotaSource decides how many ships a fleet may add this frame.
// *scripting.Engine implements it.
type QuotaSource interface {
	CalcSpawnQuota(fleet string, alive, population int) int
}

type fleetState struct {
	data.FleetEntry
	alive  int
	serial int
}

// SpawnSystem keeps every scenario fleet at its population. Ships are built
// in full before anyone else sees them: create, attach components, place,
// InitEntity, OptimizeEntity. Phase 1 (Spawn).
type SpawnSystem struct {
	m        *ecs.Manager
	bus      *event.Bus
	rng      *rand.Rand
	bodies   *BodySystem
	ships    *ShipSystem
	steering *SteeringSystem
	quota    QuotaSource
	log      *zap.Logger

	fleets  []fleetState
	byName  map[string]int
	spawned int
}

func NewSpawnSystem(m *ecs.Manager, bus *event.Bus, scenario *data.Scenario, rng *rand.Rand, quota QuotaSource, log *zap.Logger) *SpawnSystem {
	s := &SpawnSystem{
		m:      m,
		bus:    bus,
		rng:    rng,
		quota:  quota,
		log:    log,
		byName: make(map[string]int, scenario.Count()),
	}
	for _, f := range scenario.Fleets() {
		s.byName[f.Name] = len(s.fleets)
		s.fleets = append(s.fleets, fleetState{FleetEntry: f})
	}
	event.Subscribe(bus, s.onShipExpired)
	return s
}

func (*SpawnSystem) Type() ecs.SystemType { return SysSpawn }
func (*SpawnSystem) Phase() coresys.Phase { return coresys.PhaseSpawn }

// Spawned returns the number of ships created so far.
func (s *SpawnSystem) Spawned() int { return s.spawned }

// Alive returns the live ship count the system tracks for a fleet.
func (s *SpawnSystem) Alive(fleet string) int {
	if i, ok := s.byName[fleet]; ok {
		return s.fleets[i].alive
	}
	return 0
}

func (s *SpawnSystem) onShipExpired(ev event.ShipExpired) {
	if i, ok := s.byName[ev.Fleet]; ok && s.fleets[i].alive > 0 {
		s.fleets[i].alive--
	}
}

func (s *SpawnSystem) Update(_ time.Duration) {
	if s.bodies == nil {
		s.bodies = ecs.GetSystem[*BodySystem](s.m)
		s.ships = ecs.GetSystem[*ShipSystem](s.m)
		s.steering = ecs.GetSystem[*SteeringSystem](s.m)
	}
	for i := range s.fleets {
		f := &s.fleets[i]
		missing := f.Population - f.alive
		if missing <= 0 {
			continue
		}
		want := missing
		if s.quota != nil {
			want = min(s.quota.CalcSpawnQuota(f.Name, f.alive, f.Population), missing)
		}
		if f.SpawnRate > 0 {
			want = min(want, f.SpawnRate)
		}
		for n := 0; n < want; n++ {
			s.spawn(f)
		}
	}
}

func (s *SpawnSystem) spawn(f *fleetState) {
	m := s.m
	e := m.CreateEntity()
	b := ecs.Add[*component.Body](m, e)
	sh := ecs.Add[*component.Ship](m, e)
	st := ecs.Add[*component.Steering](m, e)
	if f.TargetRadius > 0 {
		tg := ecs.Add[*component.Target](m, e)
		tg.Range = f.TargetRadius
	}

	bounds := s.bodies.Tree().Bounds()
	x := f.Origin[0] + (s.rng.Float32()*2-1)*f.Spread
	y := f.Origin[1] + (s.rng.Float32()*2-1)*f.Spread
	heading := s.rng.Float64() * 2 * math.Pi
	b.Pos = mgl32.Vec3{wrap(x, bounds.Min[0], bounds.Max[0]), wrap(y, bounds.Min[1], bounds.Max[1]), 0}
	b.Vel = mgl32.Vec3{float32(math.Cos(heading)) * f.Speed, float32(math.Sin(heading)) * f.Speed, 0}
	b.Radius = f.Radius

	sh.Fleet = f.Name
	sh.Faction = f.Faction
	sh.Callsign = s.ships.Callsign(f.Callsign, f.serial)
	sh.MaxSpeed = f.MaxSpeed
	sh.Lifetime = f.Lifetime[0] + s.rng.Float32()*(f.Lifetime[1]-f.Lifetime[0])

	st.Radius = f.SensorRadius
	st.Weights = s.steering.WeightsFor(f.Faction, f.Name)

	m.InitEntity(e)
	m.OptimizeEntity(e)
	f.alive++
	f.serial++
	s.spawned++

	event.Emit(s.bus, event.ShipSpawned{
		Ship:    e.ID(),
		Fleet:   f.Name,
		Faction: f.Faction,
		Pos:     b.Pos,
	})
	if ce := s.log.Check(zap.DebugLevel, "ship spawned"); ce != nil {
		ce.Write(zap.String("callsign", sh.Callsign), zap.Uint64("entity", uint64(e.ID())))
	}
}
