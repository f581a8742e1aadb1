package component

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/robinei/space/internal/core/alloc"
	"github.com/robinei/space/internal/core/ecs"
)

// Weights scale the individual steering behaviours.
type Weights struct {
	Separation float32
	Alignment  float32
	Cohesion   float32
	Pursuit    float32
}

// Steering accumulates the flocking force for one frame. It needs Body and
// Ship siblings; Target is optional.
type Steering struct {
	slot[Steering]

	Radius  float32
	Weights Weights
	Force   mgl32.Vec3

	Body   *Body
	Ship   *Ship
	Target *Target

	entity *ecs.Entity
}

func NewSteering(pool *alloc.IterablePool[Steering]) *Steering {
	s, i := pool.New()
	s.slot = slot[Steering]{pool: pool, index: i}
	return s
}

func (*Steering) Type() ecs.ComponentType { return TypeSteering }

func (s *Steering) Init(_ *ecs.Manager, e *ecs.Entity) {
	s.entity = e
	s.Body = ecs.Get[*Body](e)
	s.Ship = ecs.Get[*Ship](e)
	s.Target = ecs.Get[*Target](e)
	if s.Body == nil || s.Ship == nil {
		panic("component: steering needs body and ship")
	}
}

func (s *Steering) Destroy(*ecs.Manager) { s.release() }

func (s *Steering) Entity() *ecs.Entity { return s.entity }
