package model

import (
	"fmt"

	"github.com/san-kum/etherm/internal/geom"
)

// NoNeighbor marks a missing neighbor slot.
const NoNeighbor = -1

// Template is a 2-D triangulation shared by the prisms of one or more layers.
// Edge k of triangle t runs from vertex k to vertex k+1.
type Template struct {
	Points    []geom.Point2
	Triangles [][3]int

	neighbors [][3]int
}

func NewTemplate(points []geom.Point2, triangles [][3]int) (*Template, error) {
	for ti, tri := range triangles {
		for _, v := range tri {
			if v < 0 || v >= len(points) {
				return nil, fmt.Errorf("triangle %d references point %d of %d", ti, v, len(points))
			}
		}
	}
	t := &Template{Points: points, Triangles: triangles}
	t.buildAdjacency()
	return t, nil
}

func (t *Template) buildAdjacency() {
	type key struct{ a, b int }
	owner := make(map[key][2]int, 3*len(t.Triangles))
	t.neighbors = make([][3]int, len(t.Triangles))
	for ti, tri := range t.Triangles {
		t.neighbors[ti] = [3]int{NoNeighbor, NoNeighbor, NoNeighbor}
		for k := 0; k < 3; k++ {
			a, b := tri[k], tri[(k+1)%3]
			if a > b {
				a, b = b, a
			}
			if o, ok := owner[key{a, b}]; ok {
				t.neighbors[ti][k] = o[0]
				t.neighbors[o[0]][o[1]] = ti
				continue
			}
			owner[key{a, b}] = [2]int{ti, k}
		}
	}
}

func (t *Template) Size() int { return len(t.Triangles) }

func (t *Template) Triangle(i int) geom.Triangle {
	tri := t.Triangles[i]
	return geom.Triangle{t.Points[tri[0]], t.Points[tri[1]], t.Points[tri[2]]}
}

// Neighbors returns the triangles across edges 0..2.
func (t *Template) Neighbors(i int) [3]int { return t.neighbors[i] }

// GridTemplate triangulates an nx × ny grid of dx × dy cells, two triangles per cell.
func GridTemplate(nx, ny int, dx, dy float64) *Template {
	var pts []geom.Point2
	for y := 0; y <= ny; y++ {
		for x := 0; x <= nx; x++ {
			pts = append(pts, geom.Point2{X: float64(x) * dx, Y: float64(y) * dy})
		}
	}
	id := func(x, y int) int { return y*(nx+1) + x }
	var tris [][3]int
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			tris = append(tris,
				[3]int{id(x, y), id(x+1, y), id(x+1, y+1)},
				[3]int{id(x, y), id(x+1, y+1), id(x, y+1)},
			)
		}
	}
	t, _ := NewTemplate(pts, tris)
	return t
}
