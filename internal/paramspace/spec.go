// Package paramspace implements the typed parameter space: specs,
// validation, and encode/decode to and from the dense real vectors the
// optimizer family operates on.
package paramspace

import (
	"fmt"
	"math"
)

// Kind identifies the shape of a ParameterSpec.
type Kind int

const (
	Continuous Kind = iota
	Integer
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Spec describes one named variable in the search space.
type Spec struct {
	Name        string
	Description string
	Kind        Kind

	// Continuous / Integer
	Min, Max float64

	// Categorical: non-empty, ordered; elements are string, float64, or bool.
	Categories []any
}

// NewContinuous builds a closed-interval real-valued spec. min must be
// strictly less than max.
func NewContinuous(name string, min, max float64, description string) (Spec, error) {
	if math.IsNaN(min) || math.IsNaN(max) {
		return Spec{}, fmt.Errorf("paramspace: %q: bounds must not be NaN", name)
	}
	if !(min < max) {
		return Spec{}, fmt.Errorf("paramspace: %q: continuous bounds must satisfy min < max, got [%v, %v]", name, min, max)
	}
	return Spec{Name: name, Description: description, Kind: Continuous, Min: min, Max: max}, nil
}

// NewInteger builds a closed-interval integer spec. min must be strictly
// less than max; a degenerate interval (min == max) is rejected rather
// than treated as a constant value.
func NewInteger(name string, min, max float64, description string) (Spec, error) {
	if math.IsNaN(min) || math.IsNaN(max) {
		return Spec{}, fmt.Errorf("paramspace: %q: bounds must not be NaN", name)
	}
	if !(min < max) {
		return Spec{}, fmt.Errorf("paramspace: %q: integer bounds must satisfy min < max, got [%v, %v]", name, min, max)
	}
	if min != math.Trunc(min) || max != math.Trunc(max) {
		return Spec{}, fmt.Errorf("paramspace: %q: integer bounds must be integral, got [%v, %v]", name, min, max)
	}
	return Spec{Name: name, Description: description, Kind: Integer, Min: min, Max: max}, nil
}

// NewCategorical builds a finite ordered categorical spec from string,
// float64, or bool values. The list must be non-empty.
func NewCategorical(name string, categories []any, description string) (Spec, error) {
	if len(categories) == 0 {
		return Spec{}, fmt.Errorf("paramspace: %q: categorical spec must have at least one category", name)
	}
	cats := make([]any, len(categories))
	for i, c := range categories {
		switch v := c.(type) {
		case string, bool:
			cats[i] = v
		case float64:
			if math.IsNaN(v) {
				return Spec{}, fmt.Errorf("paramspace: %q: category %d is NaN", name, i)
			}
			cats[i] = v
		case int:
			cats[i] = float64(v)
		default:
			return Spec{}, fmt.Errorf("paramspace: %q: category %d has unsupported type %T", name, i, c)
		}
	}
	return Spec{Name: name, Description: description, Kind: Categorical, Categories: cats}, nil
}

// IntegerWidth returns the number of distinct integers admissible by an
// Integer spec (max - min + 1). Only meaningful for Kind == Integer.
func (s Spec) IntegerWidth() int {
	return int(s.Max-s.Min) + 1
}

// valuesEqual implements the categorical equality rule: value equality,
// comparing within the supported types (string, float64, bool).
func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := toFloat(b)
		return ok && av == bv
	case int:
		return valuesEqual(float64(av), b)
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
