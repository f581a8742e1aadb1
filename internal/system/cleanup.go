package system

import (
	"time"

	"github.com/robinei/space/internal/core/ecs"
	coresys "github.com/robinei/space/internal/core/system"
)

// CleanupSystem frees the entities destroyed during the previous frame and
// rotates the manager's destroy queues. Phase 6 (Cleanup), last in the frame.
type CleanupSystem struct {
	m *ecs.Manager
}

func NewCleanupSystem(m *ecs.Manager) *CleanupSystem {
	return &CleanupSystem{m: m}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.m.Update()
}
