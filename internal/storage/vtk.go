package storage

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/san-kum/etherm/internal/model"
)

var ErrNoVTK = errors.New("storage: model has no VTK representation")

// VTK cell types.
const (
	vtkLine  = 3
	vtkWedge = 13
)

// WriteVTK writes a legacy ASCII VTK file with one temperature per element as
// cell data, readable by ParaView and VisIt.
func WriteVTK(path string, m model.Model, temps []float64) error {
	if len(temps) != m.TotalElements() {
		return fmt.Errorf("vtk: %d temperatures for %d elements", len(temps), m.TotalElements())
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	switch mm := m.(type) {
	case *model.GridModel:
		writeGridVTK(w, mm, temps)
	case *model.StackupPrismModel:
		writePrismVTK(w, mm.PrismModel, temps)
	case *model.PrismModel:
		writePrismVTK(w, mm, temps)
	default:
		return fmt.Errorf("%w: %T", ErrNoVTK, m)
	}
	return w.Flush()
}

func vtkHeader(w *bufio.Writer, title string) {
	fmt.Fprintln(w, "# vtk DataFile Version 3.0")
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, "ASCII")
}

// writeGridVTK emits a rectilinear grid. VTK wants ascending coordinates, so
// layers are written bottom first.
func writeGridVTK(w *bufio.Writer, m *model.GridModel, temps []float64) {
	nz := m.Nz()
	vtkHeader(w, "etherm grid")
	fmt.Fprintln(w, "DATASET RECTILINEAR_GRID")
	fmt.Fprintf(w, "DIMENSIONS %d %d %d\n", m.Nx+1, m.Ny+1, nz+1)

	fmt.Fprintf(w, "X_COORDINATES %d double\n", m.Nx+1)
	for x := 0; x <= m.Nx; x++ {
		fmt.Fprintf(w, "%g ", m.Origin.X+float64(x)*m.Dx)
	}
	fmt.Fprintf(w, "\nY_COORDINATES %d double\n", m.Ny+1)
	for y := 0; y <= m.Ny; y++ {
		fmt.Fprintf(w, "%g ", m.Origin.Y+float64(y)*m.Dy)
	}
	fmt.Fprintf(w, "\nZ_COORDINATES %d double\n", nz+1)
	fmt.Fprintf(w, "%g ", m.LayerTop(nz-1)-m.Layers[nz-1].Thickness)
	for z := nz - 1; z >= 0; z-- {
		fmt.Fprintf(w, "%g ", m.LayerTop(z))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "CELL_DATA %d\n", m.TotalElements())
	fmt.Fprintln(w, "SCALARS temperature double 1")
	fmt.Fprintln(w, "LOOKUP_TABLE default")
	for z := nz - 1; z >= 0; z-- {
		for y := 0; y < m.Ny; y++ {
			for x := 0; x < m.Nx; x++ {
				fmt.Fprintf(w, "%g\n", temps[m.Index(x, y, z)])
			}
		}
	}
}

// writePrismVTK emits an unstructured grid with one wedge per prism and one
// line per bondwire segment. Points are not shared between cells.
func writePrismVTK(w *bufio.Writer, m *model.PrismModel, temps []float64) {
	np := m.TotalPrisms()
	nl := len(m.Lines)

	vtkHeader(w, "etherm prism")
	fmt.Fprintln(w, "DATASET UNSTRUCTURED_GRID")
	fmt.Fprintf(w, "POINTS %d double\n", 6*np+2*nl)
	for i := 0; i < np; i++ {
		tri := m.Triangle(i).CCW()
		l := m.Layers[m.Prisms[i].Layer]
		bottom := l.Elevation - l.Thickness
		for _, z := range []float64{bottom, l.Elevation} {
			for _, p := range tri {
				fmt.Fprintf(w, "%g %g %g\n", p.X, p.Y, z)
			}
		}
	}
	for _, ln := range m.Lines {
		fmt.Fprintf(w, "%g %g %g\n", ln.Start.X, ln.Start.Y, ln.Start.Z)
		fmt.Fprintf(w, "%g %g %g\n", ln.End.X, ln.End.Y, ln.End.Z)
	}

	fmt.Fprintf(w, "CELLS %d %d\n", np+nl, 7*np+3*nl)
	for i := 0; i < np; i++ {
		b := 6 * i
		fmt.Fprintf(w, "6 %d %d %d %d %d %d\n", b, b+1, b+2, b+3, b+4, b+5)
	}
	for k := 0; k < nl; k++ {
		b := 6*np + 2*k
		fmt.Fprintf(w, "2 %d %d\n", b, b+1)
	}

	fmt.Fprintf(w, "CELL_TYPES %d\n", np+nl)
	for i := 0; i < np; i++ {
		fmt.Fprintln(w, vtkWedge)
	}
	for k := 0; k < nl; k++ {
		fmt.Fprintln(w, vtkLine)
	}

	fmt.Fprintf(w, "CELL_DATA %d\n", np+nl)
	fmt.Fprintln(w, "SCALARS temperature double 1")
	fmt.Fprintln(w, "LOOKUP_TABLE default")
	for _, v := range temps {
		fmt.Fprintf(w, "%g\n", v)
	}
}
