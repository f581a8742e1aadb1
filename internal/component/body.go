package component

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/robinei/space/internal/core/alloc"
	"github.com/robinei/space/internal/core/ecs"
	"github.com/robinei/space/internal/core/quadtree"
	"go.uber.org/zap"
)

// Body is a point mass indexed in the quadtree by its x and y.
type Body struct {
	quadtree.Item
	slot[Body]

	Pos    mgl32.Vec3
	Vel    mgl32.Vec3
	Radius float32

	entity *ecs.Entity
	tree   *quadtree.Tree
}

// NewBody allocates a body from pool. It joins tree during Init, once the
// spawner has placed it.
func NewBody(pool *alloc.IterablePool[Body], tree *quadtree.Tree) *Body {
	b, i := pool.New()
	b.slot = slot[Body]{pool: pool, index: i}
	b.tree = tree
	return b
}

func (*Body) Type() ecs.ComponentType { return TypeBody }

func (b *Body) Init(m *ecs.Manager, e *ecs.Entity) {
	b.entity = e
	if err := b.tree.Insert(b); err != nil {
		m.Log().Warn("body not indexed",
			zap.Uint64("entity", uint64(e.ID())),
			zap.Error(err))
	}
}

func (b *Body) Destroy(*ecs.Manager) {
	b.Item.Remove()
	b.release()
}

func (b *Body) QTreePosition() (float32, float32) { return b.Pos[0], b.Pos[1] }

// Entity returns the owning entity, nil before Init.
func (b *Body) Entity() *ecs.Entity { return b.entity }

// BodyOf returns the body behind a quadtree query result.
func BodyOf(o quadtree.Object) *Body {
	b, _ := o.(*Body)
	return b
}
