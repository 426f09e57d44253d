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
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/thestormforge/optimize-driver/internal/searchspace"
)

// ErrTerminal is returned when attempting to change the status of a trial that has already finished.
var ErrTerminal = errors.New("trial status is terminal")

// MetricPoint is a single metric observation reported by a trial.
type MetricPoint struct {
	// Step is the progress index (e.g. epoch or batch) of the observation.
	Step int64 `json:"step"`
	// Value is the reported metric value.
	Value float64 `json:"value"`
	// Time is when the value was reported.
	Time time.Time `json:"time"`
}

// Transition records a change in trial status.
type Transition struct {
	Status  Status    `json:"status"`
	Time    time.Time `json:"time"`
	Reason  string    `json:"reason,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Trial is a single parameter assignment bound to a run of the training routine.
type Trial struct {
	// ID uniquely identifies the trial within an experiment.
	ID int
	// Assignments are the sampled parameter values.
	Assignments searchspace.Assignments
	// Baseline indicates the assignments came from the parameter baselines.
	Baseline bool
	// Status is the current lifecycle status.
	Status Status
	// History is the metric trajectory, non-decreasing in step.
	History []MetricPoint
	// FinalMetric is the value used to rank the trial once it is complete.
	FinalMetric *float64
	// Error is the failure message of a failed trial.
	Error string
	// Transitions is the log of status changes.
	Transitions []Transition
	// StartTime is when the trial started running.
	StartTime time.Time
	// CompletionTime is when the trial reached a terminal status.
	CompletionTime time.Time
}

// New returns a new pending trial.
func New(id int, assignments searchspace.Assignments, now time.Time) *Trial {
	t := &Trial{ID: id, Assignments: assignments}
	t.Transitions = append(t.Transitions, Transition{Status: Pending, Time: now, Reason: "Created"})
	return t
}

// Start transitions a pending trial to running.
func (t *Trial) Start(now time.Time) error {
	if err := t.transition(Running, "Launched", "", now); err != nil {
		return err
	}
	t.StartTime = now
	return nil
}

// Finish records the final metric of a running trial.
func (t *Trial) Finish(value float64, now time.Time) error {
	if err := t.transition(Finished, "Completed", "", now); err != nil {
		return err
	}
	t.FinalMetric = &value
	t.CompletionTime = now
	return nil
}

// Fail records the failure of a pending or running trial.
func (t *Trial) Fail(reason string, cause error, now time.Time) error {
	var msg string
	if cause != nil {
		msg = cause.Error()
	}
	if err := t.transition(Failed, reason, msg, now); err != nil {
		return err
	}
	t.Error = msg
	t.CompletionTime = now
	return nil
}

// EarlyStop records the acknowledged cancellation of a running trial. The last reported
// metric (if any) becomes the final metric.
func (t *Trial) EarlyStop(reason string, now time.Time) error {
	if err := t.transition(EarlyStopped, reason, "", now); err != nil {
		return err
	}
	if p, ok := t.Current(); ok {
		v := p.Value
		t.FinalMetric = &v
	}
	t.CompletionTime = now
	return nil
}

func (t *Trial) transition(to Status, reason, message string, now time.Time) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("trial %d is %s: %w", t.ID, t.Status, ErrTerminal)
	}

	var ok bool
	switch t.Status {
	case Pending:
		ok = to == Running || to == Failed
	case Running:
		ok = to.IsTerminal()
	}
	if !ok {
		return fmt.Errorf("trial %d cannot transition from %s to %s", t.ID, t.Status, to)
	}

	t.Status = to
	t.Transitions = append(t.Transitions, Transition{Status: to, Time: now, Reason: reason, Message: message})
	return nil
}

// Observe appends a metric point to the history. Points that would make the history
// decrease in step, or that exactly repeat the last point, are ignored.
func (t *Trial) Observe(p MetricPoint) bool {
	if last, ok := t.Current(); ok {
		if p.Step < last.Step {
			return false
		}
		if p.Step == last.Step && p.Value == last.Value && p.Time.Equal(last.Time) {
			return false
		}
	}
	t.History = append(t.History, p)
	return true
}

// Current returns the most recently observed metric point.
func (t *Trial) Current() (MetricPoint, bool) {
	if len(t.History) == 0 {
		return MetricPoint{}, false
	}
	return t.History[len(t.History)-1], true
}

// ValueAt returns the last value reported at or before the supplied step.
func (t *Trial) ValueAt(step int64) (float64, bool) {
	i := sort.Search(len(t.History), func(i int) bool { return t.History[i].Step > step })
	if i == 0 {
		return 0, false
	}
	return t.History[i-1].Value, true
}

// Duration returns the running time of the trial, zero if it never started.
func (t *Trial) Duration() time.Duration {
	if t.StartTime.IsZero() {
		return 0
	}
	if t.CompletionTime.IsZero() {
		return time.Since(t.StartTime)
	}
	return t.CompletionTime.Sub(t.StartTime)
}
