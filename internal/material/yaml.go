package material

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ScalarSpec is the YAML form of a Scalar; exactly one field is set.
type ScalarSpec struct {
	Constant   *float64   `yaml:"constant,omitempty"`
	Polynomial []float64  `yaml:"polynomial,omitempty"`
	Table      *TableSpec `yaml:"table,omitempty"`
}

type TableSpec struct {
	Temps  []float64 `yaml:"temps"`
	Values []float64 `yaml:"values"`
}

func (s ScalarSpec) Build() (Scalar, error) {
	switch {
	case s.Constant != nil:
		return ConstantScalar(*s.Constant), nil
	case len(s.Polynomial) > 0:
		return PolynomialScalar(s.Polynomial), nil
	case s.Table != nil:
		if len(s.Table.Temps) == 0 || len(s.Table.Temps) != len(s.Table.Values) {
			return nil, fmt.Errorf("table needs matching non-empty temps and values, got %d/%d", len(s.Table.Temps), len(s.Table.Values))
		}
		return NewTableScalar(s.Table.Temps, s.Table.Values), nil
	default:
		return nil, fmt.Errorf("empty scalar spec")
	}
}

// PropertySpec is either isotropic (Scalar) or per-axis (XYZ).
type PropertySpec struct {
	ScalarSpec `yaml:",inline"`
	XYZ        []ScalarSpec `yaml:"xyz,omitempty"`
}

func (p PropertySpec) Build() (Property, error) {
	if len(p.XYZ) > 0 {
		if len(p.XYZ) != 3 {
			return nil, fmt.Errorf("xyz needs 3 entries, got %d", len(p.XYZ))
		}
		var a Anisotropic
		for i, s := range p.XYZ {
			v, err := s.Build()
			if err != nil {
				return nil, fmt.Errorf("axis %d: %w", i, err)
			}
			a[i] = v
		}
		return a, nil
	}
	s, err := p.ScalarSpec.Build()
	if err != nil {
		return nil, err
	}
	return Isotropic{s}, nil
}

type MaterialSpec struct {
	ID           int           `yaml:"id"`
	Name         string        `yaml:"name"`
	Conductivity *PropertySpec `yaml:"conductivity,omitempty"`
	Density      *PropertySpec `yaml:"density,omitempty"`
	SpecificHeat *PropertySpec `yaml:"specific_heat,omitempty"`
	Resistivity  *PropertySpec `yaml:"resistivity,omitempty"`
}

type LibrarySpec struct {
	Materials []MaterialSpec `yaml:"materials"`
}

func (s LibrarySpec) Build() (*Table, error) {
	t := NewTable()
	for _, ms := range s.Materials {
		m := NewMaterial(ms.ID, ms.Name)
		for prop, spec := range map[PropertyID]*PropertySpec{
			ThermalConductivity: ms.Conductivity,
			MassDensity:         ms.Density,
			SpecificHeat:        ms.SpecificHeat,
			Resistivity:         ms.Resistivity,
		} {
			if spec == nil {
				continue
			}
			p, err := spec.Build()
			if err != nil {
				return nil, fmt.Errorf("material %d (%s) %s: %w", ms.ID, ms.Name, prop, err)
			}
			m.Set(prop, p)
		}
		t.Add(m)
	}
	return t, nil
}

func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var spec LibrarySpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	return spec.Build()
}

// Constant builds a ScalarSpec for a fixed value.
func Constant(v float64) ScalarSpec {
	return ScalarSpec{Constant: &v}
}
