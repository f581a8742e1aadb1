package system

import "github.com/robinei/space/internal/core/ecs"

// Tags of the systems registered with the entity manager.
const (
	SysBody ecs.SystemType = iota + 1
	SysShip
	SysSteering
	SysTarget
	SysSpawn
)
