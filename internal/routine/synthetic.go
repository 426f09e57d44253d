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

package routine

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/thestormforge/optimize-driver/internal/executor"
	"github.com/thestormforge/optimize-driver/internal/searchspace"
)

// sweetSpot is the relative position in each numeric range that produces the best value.
const sweetSpot = 0.618

// Synthetic simulates a training run: the metric follows a saturating learning curve whose
// plateau depends on how close the assignments are to a fixed point in the search space.
type Synthetic struct {
	// Space is used to normalize the assignments.
	Space *searchspace.SearchSpace
	// Steps is the number of values reported.
	Steps int
	// StepInterval is the simulated time per step.
	StepInterval time.Duration
	// Noise is the standard deviation of the noise added to each value.
	Noise float64
	// Seed makes the noise reproducible.
	Seed int64
}

// Target returns the plateau of the learning curve for the assignments, in the range [0,1].
func (s *Synthetic) Target(params searchspace.Assignments) float64 {
	if len(params) == 0 {
		return 0
	}

	var total float64
	for _, a := range params {
		total += s.score(a)
	}
	return total / float64(len(params))
}

func (s *Synthetic) score(a searchspace.Assignment) float64 {
	p, ok := s.Space.Lookup(a.Name)
	if !ok {
		return 0
	}

	switch p.Type {
	case searchspace.Categorical:
		for i, v := range p.Values {
			if v == a.Value.String() {
				return 1 - float64(i)/float64(len(p.Values))
			}
		}
		return 0
	default:
		min, _ := p.Bounds.Min.Float64()
		max, _ := p.Bounds.Max.Float64()
		if max <= min {
			return 1
		}
		x := (a.Value.Float64Value() - min) / (max - min)
		return 1 - math.Abs(x-sweetSpot)
	}
}

// Run is the training routine.
func (s *Synthetic) Run(ctx context.Context, params searchspace.Assignments, r executor.Reporter) (float64, error) {
	target := s.Target(params)
	rng := rand.New(rand.NewSource(s.seed(params)))

	steps := s.Steps
	if steps <= 0 {
		steps = 1
	}

	var value float64
	for step := 1; step <= steps; step++ {
		if !sleep(ctx, s.StepInterval) {
			return value, ctx.Err()
		}

		value = target * (1 - math.Exp(-3*float64(step)/float64(steps)))
		if s.Noise > 0 {
			value += rng.NormFloat64() * s.Noise
		}

		if err := r.Report(value, int64(step)); err != nil {
			return value, err
		}
	}
	return value, nil
}

func (s *Synthetic) seed(params searchspace.Assignments) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(params.Format()))
	return s.Seed ^ int64(h.Sum64())
}
