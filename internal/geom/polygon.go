package geom

import "math"

type Triangle [3]Point2

// SignedArea is positive for counter-clockwise vertex order.
func (t Triangle) SignedArea() float64 {
	return 0.5 * Cross(t[1].Sub(t[0]), t[2].Sub(t[0]))
}

func (t Triangle) Area() float64 { return math.Abs(t.SignedArea()) }

func (t Triangle) Centroid() Point2 {
	return Point2{(t[0].X + t[1].X + t[2].X) / 3, (t[0].Y + t[1].Y + t[2].Y) / 3}
}

func (t Triangle) BBox() Box2 {
	b := EmptyBox2()
	for _, p := range t {
		b = b.Extend(p)
	}
	return b
}

// CCW returns the triangle with counter-clockwise orientation.
func (t Triangle) CCW() Triangle {
	if t.SignedArea() < 0 {
		return Triangle{t[0], t[2], t[1]}
	}
	return t
}

// Contains reports whether p lies inside or on the triangle.
func (t Triangle) Contains(p Point2) bool {
	c := t.CCW()
	const eps = 1e-12
	for i := 0; i < 3; i++ {
		if Cross(c[(i+1)%3].Sub(c[i]), p.Sub(c[i])) < -eps {
			return false
		}
	}
	return true
}

// Edge returns the i-th edge (t[i], t[i+1]).
func (t Triangle) Edge(i int) (Point2, Point2) {
	return t[i%3], t[(i+1)%3]
}

func (t Triangle) Polygon() []Point2 {
	c := t.CCW()
	return []Point2{c[0], c[1], c[2]}
}

// PolygonArea is the absolute shoelace area of a simple polygon.
func PolygonArea(poly []Point2) float64 {
	if len(poly) < 3 {
		return 0
	}
	s := 0.0
	for i := range poly {
		j := (i + 1) % len(poly)
		s += Cross(poly[i], poly[j])
	}
	return math.Abs(s) / 2
}

// ClipConvex clips subject against the counter-clockwise convex polygon clip
// (Sutherland-Hodgman). The result is convex when subject is convex.
func ClipConvex(subject, clip []Point2) []Point2 {
	out := subject
	for i := range clip {
		if len(out) == 0 {
			break
		}
		a, b := clip[i], clip[(i+1)%len(clip)]
		in := out
		out = make([]Point2, 0, len(in)+2)
		inside := func(p Point2) bool { return Cross(b.Sub(a), p.Sub(a)) >= 0 }
		for j := range in {
			cur, prev := in[j], in[(j+len(in)-1)%len(in)]
			curIn, prevIn := inside(cur), inside(prev)
			if curIn {
				if !prevIn {
					out = append(out, lineIntersect(prev, cur, a, b))
				}
				out = append(out, cur)
			} else if prevIn {
				out = append(out, lineIntersect(prev, cur, a, b))
			}
		}
	}
	return out
}

func lineIntersect(p1, p2, a, b Point2) Point2 {
	d := p2.Sub(p1)
	e := b.Sub(a)
	den := Cross(d, e)
	if den == 0 {
		return p1
	}
	t := Cross(a.Sub(p1), e) / den
	return p1.Add(d.Scale(t))
}

// TriangleIntersectionArea is the overlap area of two triangles.
func TriangleIntersectionArea(a, b Triangle) float64 {
	if !a.BBox().Intersects(b.BBox()) {
		return 0
	}
	return PolygonArea(ClipConvex(a.Polygon(), b.Polygon()))
}

// BoxTriangleIntersectionArea is the overlap area of a box and a triangle.
func BoxTriangleIntersectionArea(box Box2, t Triangle) float64 {
	if box.IsEmpty() || !box.Intersects(t.BBox()) {
		return 0
	}
	return PolygonArea(ClipConvex(t.Polygon(), box.Polygon()))
}
