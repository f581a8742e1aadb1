package component

import (
	"github.com/robinei/space/internal/core/alloc"
	"github.com/robinei/space/internal/core/ecs"
)

// Target tracks the hostile ship being pursued. The target is held by id
// so a destroyed ship is noticed instead of dereferenced.
type Target struct {
	slot[Target]

	ID    ecs.EntityID
	Range float32 // acquisition radius

	Body *Body
	Ship *Ship

	entity *ecs.Entity
}

func NewTarget(pool *alloc.IterablePool[Target]) *Target {
	t, i := pool.New()
	t.slot = slot[Target]{pool: pool, index: i}
	return t
}

func (*Target) Type() ecs.ComponentType { return TypeTarget }

func (t *Target) Init(_ *ecs.Manager, e *ecs.Entity) {
	t.entity = e
	t.Body = ecs.Get[*Body](e)
	t.Ship = ecs.Get[*Ship](e)
	if t.Body == nil || t.Ship == nil {
		panic("component: target needs body and ship")
	}
}

func (t *Target) Destroy(*ecs.Manager) { t.release() }

func (t *Target) Entity() *ecs.Entity { return t.entity }

// Has reports whether a target is currently assigned.
func (t *Target) Has() bool { return !t.ID.IsZero() }
