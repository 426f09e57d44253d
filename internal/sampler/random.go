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

package sampler

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/thestormforge/optimize-driver/internal/searchspace"
)

// Random samples every parameter uniformly and independently of previous samples.
type Random struct {
	rng *rand.Rand
}

// NewRandom returns a random search sampler; a zero seed uses the current time.
func NewRandom(seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

// Name returns the name of the random search sampler.
func (r *Random) Name() string {
	return RandomSearch
}

// Sample draws one assignment. Integers are drawn from [min,max], doubles from [min,max).
func (r *Random) Sample(space *searchspace.SearchSpace) (searchspace.Assignments, error) {
	params := space.Parameters()
	a := make(searchspace.Assignments, 0, len(params))
	for i := range params {
		v, err := r.sampleParameter(&params[i])
		if err != nil {
			return nil, err
		}
		a = append(a, searchspace.Assignment{Name: params[i].Name, Value: v})
	}
	return a, nil
}

func (r *Random) sampleParameter(p *searchspace.ParameterSpec) (searchspace.Value, error) {
	switch p.Type {
	case searchspace.Integer:
		min, err := p.Bounds.Min.Int64()
		if err != nil {
			return searchspace.Value{}, err
		}
		max, err := p.Bounds.Max.Int64()
		if err != nil {
			return searchspace.Value{}, err
		}
		return searchspace.FromInt64(r.int64Between(min, max)), nil

	case searchspace.Double:
		min, err := p.Bounds.Min.Float64()
		if err != nil {
			return searchspace.Value{}, err
		}
		max, err := p.Bounds.Max.Float64()
		if err != nil {
			return searchspace.Value{}, err
		}
		f := r.rng.Float64()
		v := min + f*(max-min)
		if math.IsInf(max-min, 0) {
			v = min*(1-f) + max*f
		}
		if v >= max {
			// Rounding can land exactly on the open upper bound
			v = math.Nextafter(max, min)
		}
		return searchspace.FromFloat64(v), nil

	case searchspace.Categorical:
		return searchspace.FromString(p.Values[r.rng.Intn(len(p.Values))]), nil

	default:
		return searchspace.Value{}, fmt.Errorf("unknown parameter type: %s", p.Type)
	}
}

// int64Between returns a uniform value from [min,max]; the span may exceed the positive int64 range.
func (r *Random) int64Between(min, max int64) int64 {
	span := uint64(max) - uint64(min)
	switch {
	case span < math.MaxInt64:
		return min + r.rng.Int63n(int64(span)+1)
	case span == math.MaxUint64:
		return int64(r.rng.Uint64())
	}
	for {
		if v := r.rng.Uint64(); v <= span {
			return int64(uint64(min) + v)
		}
	}
}
