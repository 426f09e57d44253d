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

// Package earlystop decides when running trials should be abandoned in favor of new ones.
package earlystop

import (
	"fmt"
	"math"
	"sort"

	"github.com/thestormforge/optimize-driver/internal/trial"
)

// Decision is a request to stop a running trial.
type Decision struct {
	// TrialID is the trial to stop.
	TrialID int
	// Step is the step the comparison was made at.
	Step int64
	// Value is the trial's value at the step.
	Value float64
	// Median is the reference value the trial was compared against.
	Median float64
	// Samples is the number of completed trials contributing to the median.
	Samples int
}

func (d Decision) String() string {
	return fmt.Sprintf("trial %d value %g at step %d vs median %g of %d", d.TrialID, d.Value, d.Step, d.Median, d.Samples)
}

// Policy decides which running trials should be stopped.
type Policy interface {
	// Evaluate inspects the supplied trials and returns the running trials that should be stopped.
	Evaluate(trials []*trial.Trial) ([]Decision, error)
}

// Never is a policy that never stops a trial.
type Never struct{}

// Evaluate always returns no decisions.
func (Never) Evaluate([]*trial.Trial) ([]Decision, error) { return nil, nil }

// StoppingPolicyError indicates the trial data could not be used to make a stopping decision.
type StoppingPolicyError struct {
	TrialID int
	Reason  string
}

func (e *StoppingPolicyError) Error() string {
	return fmt.Sprintf("unable to evaluate stopping policy for trial %d: %s", e.TrialID, e.Reason)
}

// MedianRule stops a running trial whose current value is worse than the median of the completed
// trials' values at the same step.
type MedianRule struct {
	// Direction determines what "worse" means.
	Direction trial.Direction
	// Min is the number of completed trials required before any trial is stopped.
	Min int
}

// Evaluate applies the median rule.
func (m *MedianRule) Evaluate(trials []*trial.Trial) ([]Decision, error) {
	var running, completed []*trial.Trial
	for _, t := range trials {
		switch {
		case t.Status == trial.Running:
			running = append(running, t)
		case t.Status.IsCompleted():
			completed = append(completed, t)
		}
	}

	if len(completed) < m.Min || len(running) == 0 {
		return nil, nil
	}

	for _, t := range completed {
		if err := checkHistory(t); err != nil {
			return nil, err
		}
	}

	need := m.Min
	if need < 1 {
		need = 1
	}

	var decisions []Decision
	for _, r := range running {
		if err := checkHistory(r); err != nil {
			return nil, err
		}
		cur, ok := r.Current()
		if !ok {
			continue
		}

		values := make([]float64, 0, len(completed))
		for _, c := range completed {
			if v, ok := c.ValueAt(cur.Step); ok {
				values = append(values, v)
			}
		}
		if len(values) < need {
			continue
		}

		med := Median(values)
		if m.Direction.Better(med, cur.Value) {
			decisions = append(decisions, Decision{
				TrialID: r.ID,
				Step:    cur.Step,
				Value:   cur.Value,
				Median:  med,
				Samples: len(values),
			})
		}
	}

	return decisions, nil
}

// Median returns the median of the supplied values; the mean of the two middle values is used
// for an even number of values. The slice is sorted in place.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

func checkHistory(t *trial.Trial) error {
	for i, p := range t.History {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return &StoppingPolicyError{TrialID: t.ID, Reason: fmt.Sprintf("non-finite value at step %d", p.Step)}
		}
		if i > 0 && p.Step < t.History[i-1].Step {
			return &StoppingPolicyError{TrialID: t.ID, Reason: fmt.Sprintf("step %d follows step %d", p.Step, t.History[i-1].Step)}
		}
	}
	return nil
}
