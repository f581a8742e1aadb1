package system

import "time"

// Phase defines execution ordering within a single frame.
type Phase int

const (
	PhaseEvents    Phase = iota // 0: dispatch last frame's events
	PhaseSpawn                  // 1: create and initialise entities
	PhaseThink                  // 2: lifetimes, target selection
	PhaseSteer                  // 3: neighbour queries, steering forces
	PhaseIntegrate              // 4: move bodies, re-file them in the quadtree
	PhaseObserve                // 5: metrics and run statistics
	PhaseCleanup                // 6: free entities destroyed last frame
)

func (p Phase) String() string {
	switch p {
	case PhaseEvents:
		return "events"
	case PhaseSpawn:
		return "spawn"
	case PhaseThink:
		return "think"
	case PhaseSteer:
		return "steer"
	case PhaseIntegrate:
		return "integrate"
	case PhaseObserve:
		return "observe"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is the interface every frame system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
