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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

func TestSearchSpace_Add(t *testing.T) {
	baseline := FromInt64(9)

	testCases := []struct {
		desc    string
		spec    ParameterSpec
		invalid bool
	}{
		{
			desc: "integer",
			spec: ParameterSpec{Name: "kernel", Type: Integer, Bounds: &Bounds{Min: "2", Max: "8"}},
		},
		{
			desc: "single value integer",
			spec: ParameterSpec{Name: "kernel", Type: Integer, Bounds: &Bounds{Min: "3", Max: "3"}},
		},
		{
			desc:    "fractional integer bound",
			spec:    ParameterSpec{Name: "kernel", Type: Integer, Bounds: &Bounds{Min: "2.5", Max: "8"}},
			invalid: true,
		},
		{
			desc:    "inverted integer bounds",
			spec:    ParameterSpec{Name: "kernel", Type: Integer, Bounds: &Bounds{Min: "8", Max: "2"}},
			invalid: true,
		},
		{
			desc:    "missing bounds",
			spec:    ParameterSpec{Name: "kernel", Type: Integer},
			invalid: true,
		},
		{
			desc: "double",
			spec: ParameterSpec{Name: "dropout", Type: Double, Bounds: &Bounds{Min: "0.01", Max: "0.99"}},
		},
		{
			desc:    "empty double range",
			spec:    ParameterSpec{Name: "dropout", Type: Double, Bounds: &Bounds{Min: "0.5", Max: "0.5"}},
			invalid: true,
		},
		{
			desc: "categorical",
			spec: ParameterSpec{Name: "optimizer", Type: Categorical, Values: []string{"adam", "sgd"}},
		},
		{
			desc:    "empty categorical",
			spec:    ParameterSpec{Name: "optimizer", Type: Categorical},
			invalid: true,
		},
		{
			desc:    "duplicate categorical value",
			spec:    ParameterSpec{Name: "optimizer", Type: Categorical, Values: []string{"adam", "adam"}},
			invalid: true,
		},
		{
			desc:    "unknown type",
			spec:    ParameterSpec{Name: "x", Type: "complex"},
			invalid: true,
		},
		{
			desc:    "missing name",
			spec:    ParameterSpec{Type: Categorical, Values: []string{"a"}},
			invalid: true,
		},
		{
			desc:    "baseline out of range",
			spec:    ParameterSpec{Name: "kernel", Type: Integer, Bounds: &Bounds{Min: "2", Max: "8"}, Baseline: &baseline},
			invalid: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			s := &SearchSpace{}
			err := s.Add(tc.spec)
			if !tc.invalid {
				assert.NoError(t, err)
				assert.Equal(t, 1, s.Len())
				return
			}
			var ide *InvalidDomainError
			assert.ErrorAs(t, err, &ide)
			assert.Equal(t, 0, s.Len())
		})
	}
}

func TestSearchSpace_Duplicate(t *testing.T) {
	s := &SearchSpace{}
	require.NoError(t, s.AddInteger("kernel", 2, 8))

	err := s.AddDouble("kernel", 0, 1)
	var dup *DuplicateParameterError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "kernel", dup.Name)
}

func TestSearchSpace_Frozen(t *testing.T) {
	s := &SearchSpace{}
	require.NoError(t, s.AddInteger("kernel", 2, 8))
	s.Freeze()

	assert.ErrorIs(t, s.AddInteger("pool", 2, 8), ErrFrozen)
	assert.Equal(t, []string{"kernel"}, s.Names())
}

func TestSearchSpace_Order(t *testing.T) {
	s := &SearchSpace{}
	require.NoError(t, s.AddInteger("kernel", 2, 8))
	require.NoError(t, s.AddInteger("pool", 2, 8))
	require.NoError(t, s.AddDouble("dropout", 0.01, 0.99))
	require.NoError(t, s.AddCategorical("activation", "relu", "tanh"))

	assert.Equal(t, []string{"kernel", "pool", "dropout", "activation"}, s.Names())
}

func TestSearchSpace_Validate(t *testing.T) {
	s := &SearchSpace{}
	require.NoError(t, s.AddInteger("kernel", 2, 8))
	require.NoError(t, s.AddDouble("dropout", 0.01, 0.99))

	testCases := []struct {
		desc        string
		assignments Assignments
		valid       bool
	}{
		{
			desc:      "valid",
			assignments: Assignments{{Name: "kernel", Value: FromInt64(2)}, {Name: "dropout", Value: FromFloat64(0.5)}},
			valid:       true,
		},
		{
			desc:      "missing",
			assignments: Assignments{{Name: "kernel", Value: FromInt64(2)}},
		},
		{
			desc:      "out of order",
			assignments: Assignments{{Name: "dropout", Value: FromFloat64(0.5)}, {Name: "kernel", Value: FromInt64(2)}},
		},
		{
			desc:      "integer upper bound is inclusive",
			assignments: Assignments{{Name: "kernel", Value: FromInt64(8)}, {Name: "dropout", Value: FromFloat64(0.5)}},
			valid:       true,
		},
		{
			desc:      "double upper bound is exclusive",
			assignments: Assignments{{Name: "kernel", Value: FromInt64(8)}, {Name: "dropout", Value: FromFloat64(0.99)}},
		},
		{
			desc:      "string for number",
			assignments: Assignments{{Name: "kernel", Value: FromString("2")}, {Name: "dropout", Value: FromFloat64(0.5)}},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			err := s.Validate(tc.assignments)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSearchSpace_Baseline(t *testing.T) {
	two, half := FromInt64(2), FromFloat64(0.5)
	s, err := New(
		ParameterSpec{Name: "kernel", Type: Integer, Bounds: &Bounds{Min: "2", Max: "8"}, Baseline: &two},
		ParameterSpec{Name: "dropout", Type: Double, Bounds: &Bounds{Min: "0.01", Max: "0.99"}, Baseline: &half},
	)
	require.NoError(t, err)

	b, ok := s.Baseline()
	require.True(t, ok)
	assert.Equal(t, "kernel=2, dropout=0.5", b.Format())

	require.NoError(t, s.AddCategorical("activation", "relu"))
	_, ok = s.Baseline()
	assert.False(t, ok)
}

func TestParameterSpec_YAML(t *testing.T) {
	data := []byte(`
- name: kernel
  type: INTEGER
  bounds:
    min: 2
    max: 8
- name: dropout
  type: double
  bounds:
    min: 0.01
    max: 0.99
- name: activation
  type: categorical
  values: [relu, tanh]
  baseline: relu
`)
	var specs []ParameterSpec
	require.NoError(t, yaml.Unmarshal(data, &specs))

	s, err := New(specs...)
	require.NoError(t, err)
	assert.Equal(t, []string{"kernel", "dropout", "activation"}, s.Names())

	p, ok := s.Lookup("kernel")
	require.True(t, ok)
	assert.Equal(t, Integer, p.Type)
	assert.Equal(t, json.Number("8"), p.Bounds.Max)

	p, _ = s.Lookup("activation")
	require.NotNil(t, p.Baseline)
	assert.True(t, p.Baseline.IsString)
}

func TestAssignments(t *testing.T) {
	a := Assignments{
		{Name: "kernel", Value: FromInt64(3)},
		{Name: "dropout", Value: FromFloat64(0.25)},
		{Name: "activation", Value: FromString("relu")},
	}

	assert.Equal(t, int64(3), a.Int64("kernel"))
	assert.Equal(t, 0.25, a.Float64("dropout"))
	assert.Equal(t, "relu", a.String("activation"))
	assert.Equal(t, map[string]interface{}{"kernel": int64(3), "dropout": 0.25, "activation": "relu"}, a.Map())

	b, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"kernel","value":3},{"name":"dropout","value":0.25},{"name":"activation","value":"relu"}]`, string(b))
}
