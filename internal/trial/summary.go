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

package trial

import (
	"strconv"
	"time"

	"github.com/thestormforge/optimize-driver/internal/searchspace"
)

const (
	created   = "Created"
	running   = "Running"
	reporting = "Reporting"
	completed = "Completed"
	stopped   = "Stopped"
	failed    = "Failed"
)

// Summary is the published view of a trial.
type Summary struct {
	ID             int                     `json:"id"`
	Status         Status                  `json:"status"`
	Phase          string                  `json:"phase"`
	Baseline       bool                    `json:"baseline,omitempty"`
	Assignments    searchspace.Assignments `json:"assignments"`
	Step           *int64                  `json:"step,omitempty"`
	Value          *float64                `json:"value,omitempty"`
	FinalMetric    *float64                `json:"finalMetric,omitempty"`
	Error          string                  `json:"error,omitempty"`
	StartTime      *time.Time              `json:"startTime,omitempty"`
	CompletionTime *time.Time              `json:"completionTime,omitempty"`
	Duration       string                  `json:"duration,omitempty"`
	Transitions    []Transition            `json:"transitions,omitempty"`
}

// Summary returns a point-in-time summary of the trial.
func (t *Trial) Summary() Summary {
	s := Summary{
		ID:          t.ID,
		Status:      t.Status,
		Phase:       t.phase(),
		Baseline:    t.Baseline,
		Assignments: t.Assignments,
		Error:       t.Error,
		Transitions: append([]Transition(nil), t.Transitions...),
	}

	if p, ok := t.Current(); ok {
		step, value := p.Step, p.Value
		s.Step, s.Value = &step, &value
	}
	if t.FinalMetric != nil {
		v := *t.FinalMetric
		s.FinalMetric = &v
	}
	if !t.StartTime.IsZero() {
		st := t.StartTime
		s.StartTime = &st
		s.Duration = t.Duration().Round(time.Millisecond).String()
	}
	if !t.CompletionTime.IsZero() {
		ct := t.CompletionTime
		s.CompletionTime = &ct
	}

	return s
}

// AssignmentsText returns the assignments formatted as "name=value" pairs.
func (s *Summary) AssignmentsText() string {
	return s.Assignments.Format()
}

// ValueText returns the best available metric value for display.
func (s *Summary) ValueText() string {
	switch {
	case s.FinalMetric != nil:
		return strconv.FormatFloat(*s.FinalMetric, 'g', 6, 64)
	case s.Value != nil:
		return strconv.FormatFloat(*s.Value, 'g', 6, 64)
	}
	return ""
}

func (t *Trial) phase() string {
	switch t.Status {
	case Pending:
		return created
	case Running:
		if len(t.History) > 0 {
			return reporting
		}
		return running
	case Finished:
		return completed
	case EarlyStopped:
		return stopped
	case Failed:
		return failed
	}
	return ""
}
