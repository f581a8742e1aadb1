package event

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/robinei/space/internal/core/ecs"
)

// Ship lifecycle and targeting events. Emitted during frame N, delivered at
// the start of frame N+1. Entity ids may be stale by the time a handler
// runs; resolve them through the manager before touching the entity.

type ShipSpawned struct {
	Ship    ecs.EntityID
	Fleet   string
	Faction int
	Pos     mgl32.Vec3
}

type ShipExpired struct {
	Ship     ecs.EntityID
	Fleet    string
	Callsign string
	Age      float32 // seconds
}

type TargetAcquired struct {
	Ship   ecs.EntityID
	Target ecs.EntityID
	Range  float32
}

type TargetLost struct {
	Ship   ecs.EntityID
	Target ecs.EntityID
}
