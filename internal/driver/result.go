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

package driver

import (
	"github.com/google/uuid"
	"github.com/thestormforge/optimize-driver/internal/trial"
)

// Result is the outcome of an experiment run.
type Result struct {
	// Name is the experiment name.
	Name string `json:"name"`
	// RunID uniquely identifies this run of the experiment.
	RunID uuid.UUID `json:"runID"`
	// State is the final state of the run.
	State State `json:"state"`
	// Direction is the optimization direction used to select the best trial.
	Direction trial.Direction `json:"direction"`
	// Trials is every trial created, ordered by ID.
	Trials []*trial.Trial `json:"-"`
	// Best is the trial with the best final metric, if any.
	Best *trial.Trial `json:"-"`
}

// Summaries returns the summaries of all the trials.
func (r *Result) Summaries() []trial.Summary {
	s := make([]trial.Summary, 0, len(r.Trials))
	for _, t := range r.Trials {
		s = append(s, t.Summary())
	}
	return s
}

// Counts returns the number of trials in each status.
func (r *Result) Counts() map[trial.Status]int {
	c := make(map[trial.Status]int)
	for _, t := range r.Trials {
		c[t.Status]++
	}
	return c
}

// best returns the completed trial with the best final metric. Early stopped trials compete
// using their last reported value; ties go to the lower trial ID.
func best(d trial.Direction, trials []*trial.Trial) *trial.Trial {
	var b *trial.Trial
	for _, t := range trials {
		if !t.Status.IsCompleted() || t.FinalMetric == nil {
			continue
		}
		if b == nil || d.Better(*t.FinalMetric, *b.FinalMetric) {
			b = t
		}
	}
	return b
}
