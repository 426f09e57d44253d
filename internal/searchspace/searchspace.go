/*
Copyright 2022 GramLabs, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package searchspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Kind identifies the domain type of a parameter.
type Kind string

const (
	// Integer parameters take whole number values from an inclusive range
	Integer Kind = "int"
	// Double parameters take floating point values from a half-open range
	Double Kind = "double"
	// Categorical parameters take one value from an explicit set of strings
	Categorical Kind = "categorical"
)

// UnmarshalJSON accepts the canonical kind names as well as the long upper-case forms.
func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch strings.ToLower(s) {
	case "int", "integer":
		*k = Integer
	case "double", "float":
		*k = Double
	case "categorical", "category":
		*k = Categorical
	default:
		*k = Kind(s)
	}
	return nil
}

// Bounds is the numeric domain of a parameter.
type Bounds struct {
	// The minimum value for a numeric parameter.
	Min json.Number `json:"min"`
	// The maximum value for a numeric parameter.
	Max json.Number `json:"max"`
}

// ParameterSpec describes a single tunable parameter and its domain.
type ParameterSpec struct {
	// The name of the parameter.
	Name string `json:"name"`
	// The type of the parameter.
	Type Kind `json:"type"`
	// The domain of a numeric parameter.
	Bounds *Bounds `json:"bounds,omitempty"`
	// The allowed values of a categorical parameter.
	Values []string `json:"values,omitempty"`
	// The optional baseline value of the parameter.
	Baseline *Value `json:"baseline,omitempty"`
}

// ErrFrozen is returned when a parameter is added after sampling has started.
var ErrFrozen = errors.New("search space cannot be modified after the experiment has started")

// DuplicateParameterError is returned when a parameter name is added twice.
type DuplicateParameterError struct {
	Name string
}

func (e *DuplicateParameterError) Error() string {
	return fmt.Sprintf("duplicate parameter %q", e.Name)
}

// InvalidDomainError is returned when the domain of a parameter is malformed for its type.
type InvalidDomainError struct {
	Name   string
	Type   Kind
	Reason string
}

func (e *InvalidDomainError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("invalid parameter %q: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("invalid %s parameter %q: %s", e.Type, e.Name, e.Reason)
}

// SearchSpace is an ordered collection of parameter specifications. Insertion
// order is preserved for sampling and reporting.
type SearchSpace struct {
	params []ParameterSpec
	index  map[string]int
	frozen bool
}

// New returns a search space containing the supplied parameters.
func New(params ...ParameterSpec) (*SearchSpace, error) {
	s := &SearchSpace{}
	for i := range params {
		if err := s.Add(params[i]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add validates and appends a parameter to the search space.
func (s *SearchSpace) Add(p ParameterSpec) error {
	if s.frozen {
		return ErrFrozen
	}
	if _, ok := s.index[p.Name]; ok {
		return &DuplicateParameterError{Name: p.Name}
	}
	if err := validate(&p); err != nil {
		return err
	}

	if s.index == nil {
		s.index = make(map[string]int)
	}
	p.Values = append([]string(nil), p.Values...)
	s.index[p.Name] = len(s.params)
	s.params = append(s.params, p)
	return nil
}

// AddInteger adds an integer parameter with the inclusive range [min,max].
func (s *SearchSpace) AddInteger(name string, min, max int64) error {
	return s.Add(ParameterSpec{
		Name: name,
		Type: Integer,
		Bounds: &Bounds{
			Min: FromInt64(min).NumVal,
			Max: FromInt64(max).NumVal,
		},
	})
}

// AddDouble adds a floating point parameter with the half-open range [min,max).
func (s *SearchSpace) AddDouble(name string, min, max float64) error {
	if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
		return &InvalidDomainError{Name: name, Type: Double, Reason: "bounds must be finite"}
	}
	return s.Add(ParameterSpec{
		Name: name,
		Type: Double,
		Bounds: &Bounds{
			Min: FromFloat64(min).NumVal,
			Max: FromFloat64(max).NumVal,
		},
	})
}

// AddCategorical adds a categorical parameter with the supplied values.
func (s *SearchSpace) AddCategorical(name string, values ...string) error {
	return s.Add(ParameterSpec{
		Name:   name,
		Type:   Categorical,
		Values: values,
	})
}

// Freeze prevents any further modifications to the search space.
func (s *SearchSpace) Freeze() {
	s.frozen = true
}

// Frozen checks to see if the search space can still be modified.
func (s *SearchSpace) Frozen() bool {
	return s.frozen
}

// Len returns the number of parameters.
func (s *SearchSpace) Len() int {
	return len(s.params)
}

// Names returns the parameter names in insertion order.
func (s *SearchSpace) Names() []string {
	names := make([]string, len(s.params))
	for i := range s.params {
		names[i] = s.params[i].Name
	}
	return names
}

// Parameters returns a copy of the parameter specifications in insertion order.
func (s *SearchSpace) Parameters() []ParameterSpec {
	return append([]ParameterSpec(nil), s.params...)
}

// Lookup returns the named parameter specification.
func (s *SearchSpace) Lookup(name string) (ParameterSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return ParameterSpec{}, false
	}
	return s.params[i], true
}

// Check validates that the supplied value can be used for the named parameter.
func (s *SearchSpace) Check(name string, v Value) error {
	p, ok := s.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}
	return CheckParameterValue(&p, v)
}

// Validate ensures the assignments cover every parameter (in order) with a value inside its domain.
func (s *SearchSpace) Validate(a Assignments) error {
	if len(a) != len(s.params) {
		return fmt.Errorf("expected %d assignments, got %d", len(s.params), len(a))
	}
	for i := range s.params {
		if a[i].Name != s.params[i].Name {
			return fmt.Errorf("expected assignment for %q, got %q", s.params[i].Name, a[i].Name)
		}
		if err := CheckParameterValue(&s.params[i], a[i].Value); err != nil {
			return fmt.Errorf("parameter %q: %w", a[i].Name, err)
		}
	}
	return nil
}

// Baseline returns the baseline assignments, only if every parameter declares a baseline.
func (s *SearchSpace) Baseline() (Assignments, bool) {
	if len(s.params) == 0 {
		return nil, false
	}
	a := make(Assignments, 0, len(s.params))
	for i := range s.params {
		if s.params[i].Baseline == nil {
			return nil, false
		}
		a = append(a, Assignment{Name: s.params[i].Name, Value: *s.params[i].Baseline})
	}
	return a, true
}

// CheckParameterValue validates that the supplied value can be used for a parameter.
func CheckParameterValue(p *ParameterSpec, v Value) error {
	if p.Type == Categorical {
		if !v.IsString {
			return fmt.Errorf("categorical value must be a string: %s", v.String())
		}
		for _, allowed := range p.Values {
			if v.StrVal == allowed {
				return nil
			}
		}
		return fmt.Errorf("categorical value is out of range: %s [%s]", v.String(), strings.Join(p.Values, ", "))
	}

	if v.IsString {
		return fmt.Errorf("numeric value must not be a string: %s", v.String())
	}
	if p.Bounds == nil {
		return fmt.Errorf("unable to determine numeric bounds")
	}

	switch p.Type {
	case Integer:
		val, err := v.NumVal.Int64()
		if err != nil {
			return fmt.Errorf("integer value must be a whole number: %s", v.String())
		}
		min, _ := p.Bounds.Min.Int64()
		max, _ := p.Bounds.Max.Int64()
		if val < min || val > max {
			return fmt.Errorf("integer value is out of range [%d-%d]: %d", min, max, val)
		}
	case Double:
		val := v.Float64Value()
		min, _ := p.Bounds.Min.Float64()
		max, _ := p.Bounds.Max.Float64()
		if math.IsNaN(val) || val < min || val >= max {
			return fmt.Errorf("double value is out of range [%g-%g): %g", min, max, val)
		}
	default:
		return fmt.Errorf("unknown parameter type: %s", p.Type)
	}
	return nil
}

func validate(p *ParameterSpec) error {
	if p.Name == "" {
		return &InvalidDomainError{Type: p.Type, Reason: "name is required"}
	}

	switch p.Type {
	case Integer:
		if p.Bounds == nil {
			return &InvalidDomainError{Name: p.Name, Type: p.Type, Reason: "bounds are required"}
		}
		min, err := p.Bounds.Min.Int64()
		if err != nil {
			return &InvalidDomainError{Name: p.Name, Type: p.Type, Reason: fmt.Sprintf("minimum must be an integer: %q", p.Bounds.Min)}
		}
		max, err := p.Bounds.Max.Int64()
		if err != nil {
			return &InvalidDomainError{Name: p.Name, Type: p.Type, Reason: fmt.Sprintf("maximum must be an integer: %q", p.Bounds.Max)}
		}
		if min > max {
			return &InvalidDomainError{Name: p.Name, Type: p.Type, Reason: fmt.Sprintf("minimum %d is greater than maximum %d", min, max)}
		}

	case Double:
		if p.Bounds == nil {
			return &InvalidDomainError{Name: p.Name, Type: p.Type, Reason: "bounds are required"}
		}
		min, err := p.Bounds.Min.Float64()
		if err != nil || math.IsInf(min, 0) || math.IsNaN(min) {
			return &InvalidDomainError{Name: p.Name, Type: p.Type, Reason: fmt.Sprintf("minimum must be a finite number: %q", p.Bounds.Min)}
		}
		max, err := p.Bounds.Max.Float64()
		if err != nil || math.IsInf(max, 0) || math.IsNaN(max) {
			return &InvalidDomainError{Name: p.Name, Type: p.Type, Reason: fmt.Sprintf("maximum must be a finite number: %q", p.Bounds.Max)}
		}
		if min >= max {
			return &InvalidDomainError{Name: p.Name, Type: p.Type, Reason: fmt.Sprintf("minimum %g must be less than maximum %g", min, max)}
		}

	case Categorical:
		if len(p.Values) == 0 {
			return &InvalidDomainError{Name: p.Name, Type: p.Type, Reason: "at least one value is required"}
		}
		seen := make(map[string]struct{}, len(p.Values))
		for _, v := range p.Values {
			if _, ok := seen[v]; ok {
				return &InvalidDomainError{Name: p.Name, Type: p.Type, Reason: fmt.Sprintf("duplicate value %q", v)}
			}
			seen[v] = struct{}{}
		}

	default:
		return &InvalidDomainError{Name: p.Name, Type: p.Type, Reason: "unknown parameter type"}
	}

	if p.Baseline != nil {
		if err := CheckParameterValue(p, *p.Baseline); err != nil {
			return &InvalidDomainError{Name: p.Name, Type: p.Type, Reason: "baseline " + err.Error()}
		}
	}

	return nil
}
