package system

import (
	"fmt"
	"time"

	"github.com/robinei/space/internal/component"
	"github.com/robinei/space/internal/core/alloc"
	"github.com/robinei/space/internal/core/ecs"
	"github.com/robinei/space/internal/core/event"
	coresys "github.com/robinei/space/internal/core/system"
	"go.uber.org/zap"
)

const callsignArenaSize = 4 << 10

// compactMinBytes keeps small arenas from being compacted every frame.
const compactMinBytes = 4 << 10

// ShipSystem owns the Ship pool and the callsign arenas. It ages ships and
// destroys those that outlive their lifetime. Phase 2 (Think).
type ShipSystem struct {
	m       *ecs.Manager
	bus     *event.Bus
	ships   alloc.IterablePool[component.Ship]
	arena   *alloc.Arena // holds every live callsign
	spare   *alloc.Arena // previous arena, kept until the next compaction
	scratch []byte
	log     *zap.Logger

	expired     int
	compactions int
	compacted   bool // compacted during the previous Update
}

func NewShipSystem(m *ecs.Manager, bus *event.Bus, log *zap.Logger) *ShipSystem {
	return &ShipSystem{
		m:       m,
		bus:     bus,
		arena:   alloc.NewArena(callsignArenaSize, alloc.DefaultArenaGrowth),
		spare:   alloc.NewArena(callsignArenaSize, alloc.DefaultArenaGrowth),
		scratch: make([]byte, 0, 64),
		log:     log,
	}
}

func (*ShipSystem) Type() ecs.SystemType             { return SysShip }
func (*ShipSystem) ComponentType() ecs.ComponentType { return component.TypeShip }
func (*ShipSystem) Phase() coresys.Phase             { return coresys.PhaseThink }

func (s *ShipSystem) CreateComponent(*ecs.Manager) ecs.Component {
	return component.NewShip(&s.ships)
}

func (s *ShipSystem) Len() int            { return s.ships.Len() }
func (s *ShipSystem) Expired() int        { return s.expired }
func (s *ShipSystem) Arena() *alloc.Arena { return s.arena }
func (s *ShipSystem) Compactions() int    { return s.compactions }

// Callsign formats pattern with n into arena memory.
func (s *ShipSystem) Callsign(pattern string, n int) string {
	s.scratch = fmt.Appendf(s.scratch[:0], pattern, n)
	return s.arena.CopyBytes(s.scratch)
}

// Each visits every ship, dying ones included.
func (s *ShipSystem) Each(fn func(*component.Ship)) {
	s.ships.Each(func(_ int, sh *component.Ship) {
		fn(sh)
	})
}

func (s *ShipSystem) Update(dt time.Duration) {
	sec := float32(dt.Seconds())
	s.ships.Each(func(_ int, sh *component.Ship) {
		e := sh.Entity()
		if e == nil || e.Dying() {
			return
		}
		sh.Age += sec
		if !sh.Expired() {
			return
		}
		event.Emit(s.bus, event.ShipExpired{
			Ship:     e.ID(),
			Fleet:    sh.Fleet,
			Callsign: sh.Callsign,
			Age:      sh.Age,
		})
		s.expired++
		s.m.DestroyEntity(e)
	})

	s.compact()
}

// compact copies the callsigns of every ship still in the pool into the
// spare arena and swaps the two once dead callsigns take up at least half
// of the current one. The arena given up stays intact until the following
// compaction, and compactions never run in consecutive frames, so
// callsigns carried by last frame's events remain valid when dispatched.
func (s *ShipSystem) compact() {
	if s.compacted {
		s.compacted = false
		return
	}
	used := s.arena.Used()
	if used < compactMinBytes {
		return
	}
	live := 0
	s.ships.Each(func(_ int, sh *component.Ship) {
		live += len(sh.Callsign)
	})
	if used < 2*live {
		return
	}

	next := s.spare
	next.Clear()
	s.ships.Each(func(_ int, sh *component.Ship) {
		sh.Callsign = next.CopyString(sh.Callsign)
	})
	s.spare, s.arena = s.arena, next
	s.compactions++
	s.compacted = true
	s.log.Debug("callsign arena compacted",
		zap.Int("before", used),
		zap.Int("after", next.Used()))
}
