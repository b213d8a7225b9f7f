// Package geom holds the small amount of planar geometry the network builders
// need: boxes, triangles and convex polygon clipping for contact areas.
package geom

import "math"

type Point2 struct {
	X, Y float64
}

func (p Point2) Sub(q Point2) Point2 { return Point2{p.X - q.X, p.Y - q.Y} }
func (p Point2) Add(q Point2) Point2 { return Point2{p.X + q.X, p.Y + q.Y} }
func (p Point2) Scale(f float64) Point2 {
	return Point2{p.X * f, p.Y * f}
}
func (p Point2) Dist(q Point2) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Cross returns the z component of p×q.
func Cross(p, q Point2) float64 { return p.X*q.Y - p.Y*q.X }

type Point3 struct {
	X, Y, Z float64
}

func (p Point3) XY() Point2 { return Point2{p.X, p.Y} }

func (p Point3) Dist(q Point3) float64 {
	dx, dy, dz := p.X-q.X, p.Y-q.Y, p.Z-q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Box2 is an axis-aligned rectangle. A box with Min > Max on either axis is empty.
type Box2 struct {
	Min, Max Point2
}

func NewBox2(a, b Point2) Box2 {
	return Box2{
		Min: Point2{math.Min(a.X, b.X), math.Min(a.Y, b.Y)},
		Max: Point2{math.Max(a.X, b.X), math.Max(a.Y, b.Y)},
	}
}

func EmptyBox2() Box2 {
	return Box2{
		Min: Point2{math.Inf(1), math.Inf(1)},
		Max: Point2{math.Inf(-1), math.Inf(-1)},
	}
}

func (b Box2) IsEmpty() bool { return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y }

func (b Box2) Width() float64  { return b.Max.X - b.Min.X }
func (b Box2) Height() float64 { return b.Max.Y - b.Min.Y }

func (b Box2) Area() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.Width() * b.Height()
}

func (b Box2) Center() Point2 {
	return Point2{(b.Min.X + b.Max.X) / 2, (b.Min.Y + b.Max.Y) / 2}
}

func (b Box2) Extend(p Point2) Box2 {
	return Box2{
		Min: Point2{math.Min(b.Min.X, p.X), math.Min(b.Min.Y, p.Y)},
		Max: Point2{math.Max(b.Max.X, p.X), math.Max(b.Max.Y, p.Y)},
	}
}

func (b Box2) Contains(p Point2) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Covers reports whether o lies entirely inside b.
func (b Box2) Covers(o Box2) bool {
	return b.Contains(o.Min) && b.Contains(o.Max)
}

func (b Box2) Intersects(o Box2) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X && b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y
}

func (b Box2) Intersection(o Box2) Box2 {
	return Box2{
		Min: Point2{math.Max(b.Min.X, o.Min.X), math.Max(b.Min.Y, o.Min.Y)},
		Max: Point2{math.Min(b.Max.X, o.Max.X), math.Min(b.Max.Y, o.Max.Y)},
	}
}

// Polygon returns the box corners counter-clockwise.
func (b Box2) Polygon() []Point2 {
	return []Point2{b.Min, {b.Max.X, b.Min.Y}, b.Max, {b.Min.X, b.Max.Y}}
}

// DistanceToLine is the perpendicular distance from p to the infinite line through a and b.
func DistanceToLine(p, a, b Point2) float64 {
	l := a.Dist(b)
	if l == 0 {
		return p.Dist(a)
	}
	return math.Abs(Cross(b.Sub(a), p.Sub(a))) / l
}

// DistanceToSegment is the distance from p to the closed segment ab.
func DistanceToSegment(p, a, b Point2) float64 {
	ab := b.Sub(a)
	l2 := ab.X*ab.X + ab.Y*ab.Y
	if l2 == 0 {
		return p.Dist(a)
	}
	t := ((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / l2
	t = math.Max(0, math.Min(1, t))
	return p.Dist(a.Add(ab.Scale(t)))
}
