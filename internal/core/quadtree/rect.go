package quadtree

import "github.com/go-gl/mathgl/mgl32"

// Rect is an axis aligned rectangle, closed on all sides.
type Rect struct {
	Min, Max mgl32.Vec2
}

func NewRect(x0, y0, x1, y1 float32) Rect {
	return Rect{Min: mgl32.Vec2{x0, y0}, Max: mgl32.Vec2{x1, y1}}
}

func (r Rect) Width() float32  { return r.Max[0] - r.Min[0] }
func (r Rect) Height() float32 { return r.Max[1] - r.Min[1] }

func (r Rect) Center() mgl32.Vec2 {
	return r.Min.Add(mgl32.Vec2{r.Width(), r.Height()}.Mul(0.5))
}

func (r Rect) Contains(x, y float32) bool {
	return !(x < r.Min[0] || y < r.Min[1] || x > r.Max[0] || y > r.Max[1])
}

// ContainsFuzz is Contains with every edge pushed out by fuzz.
func (r Rect) ContainsFuzz(x, y, fuzz float32) bool {
	return !(x < r.Min[0]-fuzz || y < r.Min[1]-fuzz || x > r.Max[0]+fuzz || y > r.Max[1]+fuzz)
}

func (r Rect) Intersects(o Rect) bool {
	return !(o.Min[0] > r.Max[0] || o.Max[0] < r.Min[0] || o.Min[1] > r.Max[1] || o.Max[1] < r.Min[1])
}

// Expand grows the rectangle by d on every side.
func (r Rect) Expand(d float32) Rect {
	return Rect{
		Min: mgl32.Vec2{r.Min[0] - d, r.Min[1] - d},
		Max: mgl32.Vec2{r.Max[0] + d, r.Max[1] + d},
	}
}

// quadrant picks the child of a node centred at c: 0 and 1 are the low-y
// pair, 0 and 2 the low-x pair. Coordinates equal to the centre go to the
// high side, matching the child rectangles built by split.
func quadrant(c mgl32.Vec2, x, y float32) int {
	if y < c[1] {
		if x < c[0] {
			return 0
		}
		return 1
	}
	if x < c[0] {
		return 2
	}
	return 3
}
