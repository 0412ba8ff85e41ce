package paramspace

import (
	"fmt"
	"math"
	"sort"
)

// Vector maps a parameter name to its concrete value.
type Vector map[string]any

// Space is an immutable mapping from name to Spec with no duplicate names.
// The dimension order used by Encode/Decode is lexicographic over names,
// fixed once at construction.
type Space struct {
	specs map[string]Spec
	order []string
}

// NewSpace validates and builds a Space. Every Spec must be internally
// consistent (already enforced by the New* constructors) and names must be
// unique.
func NewSpace(specs ...Spec) (*Space, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("paramspace: space must contain at least one parameter")
	}
	m := make(map[string]Spec, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("paramspace: parameter with empty name")
		}
		if _, dup := m[s.Name]; dup {
			return nil, fmt.Errorf("paramspace: duplicate parameter name %q", s.Name)
		}
		if err := validateSpecShape(s); err != nil {
			return nil, err
		}
		m[s.Name] = s
	}
	order := make([]string, 0, len(m))
	for name := range m {
		order = append(order, name)
	}
	sort.Strings(order)
	return &Space{specs: m, order: order}, nil
}

func validateSpecShape(s Spec) error {
	switch s.Kind {
	case Continuous, Integer:
		if !(s.Min < s.Max) {
			return fmt.Errorf("paramspace: %q: non-empty interval required", s.Name)
		}
	case Categorical:
		if len(s.Categories) == 0 {
			return fmt.Errorf("paramspace: %q: categorical spec must be non-empty", s.Name)
		}
	default:
		return fmt.Errorf("paramspace: %q: unknown kind", s.Name)
	}
	return nil
}

// Names returns the parameter names in canonical (lexicographic) order.
func (sp *Space) Names() []string {
	out := make([]string, len(sp.order))
	copy(out, sp.order)
	return out
}

// Spec returns the spec for name, if present.
func (sp *Space) Spec(name string) (Spec, bool) {
	s, ok := sp.specs[name]
	return s, ok
}

// Dimension returns the number of parameters (not the number of non-trivial
// degrees of freedom — a single-value categorical still occupies one slot).
func (sp *Space) Dimension() int {
	return len(sp.order)
}

// Validate checks that vec has exactly the names in the space, each typed
// and in-range/in-set.
func (sp *Space) Validate(vec Vector) []error {
	var errs []error
	for _, name := range sp.order {
		spec := sp.specs[name]
		val, ok := vec[name]
		if !ok {
			errs = append(errs, fmt.Errorf("paramspace: %q: missing value", name))
			continue
		}
		if err := validateValue(spec, val); err != nil {
			errs = append(errs, err)
		}
	}
	for name := range vec {
		if _, known := sp.specs[name]; !known {
			errs = append(errs, fmt.Errorf("paramspace: %q: unknown parameter", name))
		}
	}
	return errs
}

func validateValue(spec Spec, val any) error {
	switch spec.Kind {
	case Continuous:
		f, ok := toFloat(val)
		if !ok || math.IsNaN(f) {
			return fmt.Errorf("paramspace: %q: value %v is not a finite number", spec.Name, val)
		}
		if f < spec.Min || f > spec.Max {
			return fmt.Errorf("paramspace: %q: value %v outside [%v, %v]", spec.Name, f, spec.Min, spec.Max)
		}
	case Integer:
		f, ok := toFloat(val)
		if !ok || math.IsNaN(f) {
			return fmt.Errorf("paramspace: %q: value %v is not a finite number", spec.Name, val)
		}
		if f != math.Trunc(f) {
			return fmt.Errorf("paramspace: %q: value %v is not an integer", spec.Name, val)
		}
		if f < spec.Min || f > spec.Max {
			return fmt.Errorf("paramspace: %q: value %v outside [%v, %v]", spec.Name, f, spec.Min, spec.Max)
		}
	case Categorical:
		for _, c := range spec.Categories {
			if valuesEqual(c, val) {
				return nil
			}
		}
		return fmt.Errorf("paramspace: %q: value %v not in category set", spec.Name, val)
	}
	return nil
}

// Encode flattens vec into a dense real vector in canonical dimension
// order. Categorical values become the index into their ordered category
// list; integers pass through as reals.
func (sp *Space) Encode(vec Vector) ([]float64, error) {
	if errs := sp.Validate(vec); len(errs) > 0 {
		return nil, fmt.Errorf("paramspace: encode: %w", errs[0])
	}
	out := make([]float64, len(sp.order))
	for i, name := range sp.order {
		spec := sp.specs[name]
		val := vec[name]
		switch spec.Kind {
		case Continuous, Integer:
			f, _ := toFloat(val)
			out[i] = f
		case Categorical:
			idx := 0
			for j, c := range spec.Categories {
				if valuesEqual(c, val) {
					idx = j
					break
				}
			}
			out[i] = float64(idx)
		}
	}
	return out, nil
}

// Decode is the inverse of Encode: integers round to nearest (halves to
// even), categorical indices clamp to [0, |categories|-1] and truncate.
func (sp *Space) Decode(vals []float64) (Vector, error) {
	if len(vals) != len(sp.order) {
		return nil, fmt.Errorf("paramspace: decode: expected %d values, got %d", len(sp.order), len(vals))
	}
	out := make(Vector, len(sp.order))
	for i, name := range sp.order {
		spec := sp.specs[name]
		v := vals[i]
		switch spec.Kind {
		case Continuous:
			out[name] = clamp(v, spec.Min, spec.Max)
		case Integer:
			rounded := roundHalfToEven(v)
			rounded = clamp(rounded, spec.Min, spec.Max)
			out[name] = rounded
		case Categorical:
			idx := int(math.Trunc(v))
			if idx < 0 {
				idx = 0
			}
			if idx > len(spec.Categories)-1 {
				idx = len(spec.Categories) - 1
			}
			out[name] = spec.Categories[idx]
		}
	}
	return out, nil
}

// BoundsLower returns the lower bound of each dimension in encoded space.
func (sp *Space) BoundsLower() []float64 {
	out := make([]float64, len(sp.order))
	for i, name := range sp.order {
		spec := sp.specs[name]
		switch spec.Kind {
		case Continuous, Integer:
			out[i] = spec.Min
		case Categorical:
			out[i] = 0
		}
	}
	return out
}

// BoundsUpper returns the upper bound of each dimension in encoded space.
func (sp *Space) BoundsUpper() []float64 {
	out := make([]float64, len(sp.order))
	for i, name := range sp.order {
		spec := sp.specs[name]
		switch spec.Kind {
		case Continuous:
			out[i] = spec.Max
		case Integer:
			out[i] = spec.Max
		case Categorical:
			out[i] = float64(len(spec.Categories) - 1)
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roundHalfToEven implements IEEE 754 round-to-nearest-even, matching
// math.RoundToEven but kept local for clarity at call sites.
func roundHalfToEven(v float64) float64 {
	return math.RoundToEven(v)
}
