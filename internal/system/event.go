package system

import (
	"time"

	"github.com/robinei/space/internal/core/event"
	coresys "github.com/robinei/space/internal/core/system"
)

// EventSystem makes last frame's events readable and delivers them.
// Phase 0 (Events).
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem {
	return &EventSystem{bus: bus}
}

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhaseEvents }

func (s *EventSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
