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

// Package executor runs training routines for trials on an execution substrate.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"github.com/thestormforge/optimize-driver/internal/heartbeat"
	"github.com/thestormforge/optimize-driver/internal/searchspace"
	"github.com/thestormforge/optimize-driver/internal/trial"
)

// Reporter receives intermediate metric values from a training routine.
type Reporter interface {
	// Report records the metric value at the specified step. Once the trial has been asked to stop
	// the value is discarded and ErrStopped is returned; the routine should return promptly.
	Report(metric float64, step int64) error
}

// Routine is a training routine run for each trial.
type Routine func(ctx context.Context, params searchspace.Assignments, r Reporter) (float64, error)

// Outcome is the result of running a trial to completion.
type Outcome struct {
	// TrialID is the trial the outcome belongs to.
	TrialID int
	// Status is the terminal status of the trial.
	Status trial.Status
	// FinalMetric is the final value of the trial, if any.
	FinalMetric *float64
	// History is the full metric trajectory reported by the routine.
	History []trial.MetricPoint
	// Err is the failure of a failed trial.
	Err error
	// Time is when the worker returned.
	Time time.Time
}

// Pool launches trials onto a substrate and collects their outcomes.
type Pool struct {
	// Substrate runs the trial workers.
	Substrate Substrate
	// Heartbeat receives intermediate reports from running trials.
	Heartbeat *heartbeat.Channel
	// Log is used to record worker lifecycle events.
	Log logr.Logger
	// MaxRetries is the number of additional launch attempts made while the substrate is unavailable.
	MaxRetries uint64
	// RetryInterval is the initial delay between launch attempts.
	RetryInterval time.Duration

	once     sync.Once
	mu       sync.Mutex
	workers  map[int]*worker
	outcomes chan Outcome
}

// NewPool returns a new worker pool for the substrate.
func NewPool(s Substrate, hb *heartbeat.Channel, log logr.Logger) *Pool {
	p := &Pool{
		Substrate:     s,
		Heartbeat:     hb,
		Log:           log,
		MaxRetries:    5,
		RetryInterval: 50 * time.Millisecond,
	}
	p.init()
	return p
}

func (p *Pool) init() {
	p.once.Do(func() {
		p.workers = make(map[int]*worker)
		p.outcomes = make(chan Outcome, p.Substrate.Capacity())
	})
}

// Outcomes returns the channel outcomes are delivered on. Each submitted trial produces exactly
// one outcome.
func (p *Pool) Outcomes() <-chan Outcome {
	p.init()
	return p.outcomes
}

// HasCapacity checks to see if another trial can be submitted.
func (p *Pool) HasCapacity() bool {
	p.init()
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers) < p.Substrate.Capacity()
}

// Active returns the number of trials currently running.
func (p *Pool) Active() int {
	p.init()
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Submit starts the routine for a pending trial and marks the trial as running. Submission is
// retried with exponential backoff while the substrate is unavailable.
func (p *Pool) Submit(ctx context.Context, t *trial.Trial, routine Routine) error {
	p.init()
	if t.Status != trial.Pending {
		return fmt.Errorf("trial %d is %s, expected %s", t.ID, t.Status, trial.Pending)
	}

	w := &worker{id: t.ID, heartbeat: p.Heartbeat}
	info := TrialInfo{ID: t.ID, Baseline: t.Baseline}
	log := p.Log.WithValues("trial", t.ID)
	task := func(tctx context.Context) {
		tctx = logr.NewContext(WithTrialInfo(tctx, info), log)
		value, err := w.run(tctx, routine, t.Assignments)
		if ctx.Err() != nil {
			// Trials interrupted by the caller are stopped, not failed
			w.stop()
		}
		p.complete(w, value, err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.RetryInterval
	attempt := 0
	op := func() error {
		attempt++
		p.mu.Lock()
		defer p.mu.Unlock()

		h, err := p.Substrate.Submit(ctx, task)
		if err != nil {
			if IsUnavailable(err) {
				p.Log.V(1).Info("Substrate unavailable", "trial", t.ID, "attempt", attempt, "error", err.Error())
				return err
			}
			return backoff.Permanent(err)
		}

		w.handle = h
		p.workers[t.ID] = w
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)); err != nil {
		return err
	}

	return t.Start(time.Now())
}

// Cancel requests cooperative termination of a running trial. The trial's outcome will be
// reported as early stopped once its routine returns. It returns false if the trial was not
// running or its routine had already returned.
func (p *Pool) Cancel(trialID int) (bool, error) {
	p.init()
	p.mu.Lock()
	w, ok := p.workers[trialID]
	p.mu.Unlock()
	if !ok || !w.stop() {
		return false, nil
	}

	return true, p.Substrate.Cancel(w.handle)
}

// CancelAll requests termination of every running trial.
func (p *Pool) CancelAll() {
	p.init()
	p.mu.Lock()
	ids := make([]int, 0, len(p.workers))
	for id := range p.workers {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		if _, err := p.Cancel(id); err != nil {
			p.Log.Error(err, "Failed to cancel trial", "trial", id)
		}
	}
}

func (p *Pool) complete(w *worker, value float64, err error) {
	o := Outcome{TrialID: w.id, Time: time.Now()}

	var last *trial.MetricPoint
	o.History, last, o.Status = w.finish()
	switch {
	case o.Status == trial.EarlyStopped:
		if last != nil {
			v := last.Value
			o.FinalMetric = &v
		}
	case err != nil:
		o.Status = trial.Failed
		o.Err = err
		if !IsTrialExecutionError(err) {
			o.Err = &TrialExecutionError{TrialID: w.id, Err: err}
		}
	default:
		o.Status = trial.Finished
		o.FinalMetric = &value
	}

	p.mu.Lock()
	delete(p.workers, w.id)
	p.mu.Unlock()

	p.Log.V(1).Info("Trial worker returned", "trial", w.id, "status", o.Status.String())
	p.outcomes <- o
}

type worker struct {
	id        int
	handle    Handle
	heartbeat *heartbeat.Channel

	mu       sync.Mutex
	stopped  bool
	finished bool
	seq     uint64
	history []trial.MetricPoint
}

var _ Reporter = &worker{}

func (w *worker) run(ctx context.Context, routine Routine, params searchspace.Assignments) (value float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TrialExecutionError{TrialID: w.id, Err: fmt.Errorf("%v", r), Panic: true}
		}
	}()
	return routine(ctx, params, w)
}

// Report records the metric in the worker's history and forwards it as a heartbeat.
func (w *worker) Report(metric float64, step int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrStopped
	}
	if n := len(w.history); n > 0 && step < w.history[n-1].Step {
		return fmt.Errorf("trial %d reported step %d after step %d", w.id, step, w.history[n-1].Step)
	}

	pt := trial.MetricPoint{Step: step, Value: metric, Time: time.Now()}
	w.history = append(w.history, pt)
	w.seq++
	if w.heartbeat != nil {
		w.heartbeat.Send(heartbeat.Update{TrialID: w.id, Step: pt.Step, Value: pt.Value, Time: pt.Time, Seq: w.seq})
	}
	return nil
}

// stop marks the worker as stopped, returning false if it was already stopped or finished.
func (w *worker) stop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || w.finished {
		return false
	}
	w.stopped = true
	return true
}

// finish freezes the worker, returning the history, the last point and whether it was stopped.
func (w *worker) finish() ([]trial.MetricPoint, *trial.MetricPoint, trial.Status) {
	w.mu.Lock()
	defer w.mu.Unlock()

	status := trial.Running
	if w.stopped {
		status = trial.EarlyStopped
	}
	w.stopped = true
	w.finished = true

	history := append([]trial.MetricPoint(nil), w.history...)
	if len(history) == 0 {
		return history, nil, status
	}
	return history, &history[len(history)-1], status
}
