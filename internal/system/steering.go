package system

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/robinei/space/internal/component"
	"github.com/robinei/space/internal/core/alloc"
	"github.com/robinei/space/internal/core/ecs"
	"github.com/robinei/space/internal/core/quadtree"
	coresys "github.com/robinei/space/internal/core/system"
	"github.com/robinei/space/internal/scripting"
)

// WeightSource supplies per-fleet steering weights. *scripting.Engine
// implements it.
type WeightSource interface {
	GetSteeringWeights(faction int, fleet string) scripting.SteeringWeights
}

// SteeringSystem owns the Steering pool. For every ship it runs one radius
// query against the quadtree, accumulates separation, alignment, cohesion
// and pursuit, then applies the forces to the bodies. Forces are all
// computed before any velocity changes, so the result does not depend on
// pool order. Phase 3 (Steer).
type SteeringSystem struct {
	m        *ecs.Manager
	tree     *quadtree.Tree
	steering alloc.IterablePool[component.Steering]
	source   WeightSource
	weights  map[string]component.Weights
	buf      []quadtree.Object

	queries   int
	neighbors int
}

func NewSteeringSystem(m *ecs.Manager, tree *quadtree.Tree, source WeightSource) *SteeringSystem {
	return &SteeringSystem{
		m:       m,
		tree:    tree,
		source:  source,
		weights: make(map[string]component.Weights),
		buf:     make([]quadtree.Object, 0, 64),
	}
}

func (*SteeringSystem) Type() ecs.SystemType             { return SysSteering }
func (*SteeringSystem) ComponentType() ecs.ComponentType { return component.TypeSteering }
func (*SteeringSystem) Phase() coresys.Phase             { return coresys.PhaseSteer }

func (s *SteeringSystem) CreateComponent(*ecs.Manager) ecs.Component {
	return component.NewSteering(&s.steering)
}

func (s *SteeringSystem) Len() int { return s.steering.Len() }

// Queries returns the number of radius queries run so far and the total
// number of neighbours they returned.
func (s *SteeringSystem) Queries() (queries, neighbors int) { return s.queries, s.neighbors }

// WeightsFor returns the weights of a fleet, asking the source once per
// fleet.
func (s *SteeringSystem) WeightsFor(faction int, fleet string) component.Weights {
	if w, ok := s.weights[fleet]; ok {
		return w
	}
	w := scripting.DefaultSteeringWeights
	if s.source != nil {
		w = s.source.GetSteeringWeights(faction, fleet)
	}
	cw := component.Weights{
		Separation: float32(w.Separation),
		Alignment:  float32(w.Alignment),
		Cohesion:   float32(w.Cohesion),
		Pursuit:    float32(w.Pursuit),
	}
	s.weights[fleet] = cw
	return cw
}

func (s *SteeringSystem) Update(dt time.Duration) {
	s.steering.Each(func(_ int, st *component.Steering) {
		if st.Entity() == nil || st.Entity().Dying() {
			st.Force = mgl32.Vec3{}
			return
		}
		st.Force = s.force(st)
	})

	sec := float32(dt.Seconds())
	s.steering.Each(func(_ int, st *component.Steering) {
		if st.Entity() == nil || st.Entity().Dying() {
			return
		}
		b := st.Body
		v := b.Vel.Add(st.Force.Mul(sec))
		v[2] = 0
		if l := v.Len(); l > st.Ship.MaxSpeed {
			v = v.Mul(st.Ship.MaxSpeed / l)
		}
		b.Vel = v
	})
}

func (s *SteeringSystem) force(st *component.Steering) mgl32.Vec3 {
	b, w, maxSpeed := st.Body, st.Weights, st.Ship.MaxSpeed
	pos := b.Pos

	s.buf = s.tree.QueryRadius(pos[0], pos[1], st.Radius, s.buf[:0])
	s.queries++

	var sep, vel, centre mgl32.Vec3
	n := 0
	for _, o := range s.buf {
		nb := component.BodyOf(o)
		if nb == nil || nb == b || nb.Entity().Dying() {
			continue
		}
		d := pos.Sub(nb.Pos)
		if l2 := d.Dot(d); l2 > 0 {
			sep = sep.Add(d.Mul(st.Radius / l2))
		}
		vel = vel.Add(nb.Vel)
		centre = centre.Add(nb.Pos)
		n++
	}
	s.neighbors += n

	force := sep.Mul(w.Separation * maxSpeed)
	if n > 0 {
		inv := 1 / float32(n)
		force = force.Add(vel.Mul(inv).Sub(b.Vel).Mul(w.Alignment))
		force = force.Add(centre.Mul(inv).Sub(pos).Mul(w.Cohesion))
	}
	if tb := s.targetBody(st); tb != nil && w.Pursuit != 0 {
		d := tb.Pos.Sub(pos)
		if l := d.Len(); l > 0 {
			desired := d.Mul(maxSpeed / l)
			force = force.Add(desired.Sub(b.Vel).Mul(w.Pursuit))
		}
	}
	return force
}

// targetBody resolves the body being pursued, nil when there is no target
// or it has been freed.
func (s *SteeringSystem) targetBody(st *component.Steering) *component.Body {
	if st.Target == nil || !st.Target.Has() {
		return nil
	}
	e, ok := s.m.Resolve(st.Target.ID)
	if !ok {
		return nil
	}
	return ecs.Get[*component.Body](e)
}
