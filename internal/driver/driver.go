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

// Package driver coordinates the trials of an experiment: sampling, launching, monitoring,
// early stopping and selecting the best result.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/thestormforge/optimize-driver/internal/earlystop"
	"github.com/thestormforge/optimize-driver/internal/executor"
	"github.com/thestormforge/optimize-driver/internal/heartbeat"
	"github.com/thestormforge/optimize-driver/internal/sampler"
	"github.com/thestormforge/optimize-driver/internal/searchspace"
	"github.com/thestormforge/optimize-driver/internal/sink"
	"github.com/thestormforge/optimize-driver/internal/trial"
	"golang.org/x/time/rate"
)

// Experiment describes the trials to run.
type Experiment struct {
	// Name is the experiment name.
	Name string
	// SearchSpace is the space trial assignments are sampled from; it is frozen when the run starts.
	SearchSpace *searchspace.SearchSpace
	// Sampler produces trial assignments.
	Sampler sampler.Sampler
	// Direction is the optimization direction of the metric.
	Direction trial.Direction
	// NumTrials is the total number of trials to create.
	NumTrials int
	// HeartbeatInterval is how often intermediate metrics are ingested.
	HeartbeatInterval time.Duration
	// EarlyStopInterval is how often the early stopping policy is evaluated, zero disables early stopping.
	EarlyStopInterval time.Duration
	// EarlyStopMin is the number of completed trials required before any trial is stopped.
	EarlyStopMin int
	// LaunchRate limits the number of trials launched per second, zero is unlimited.
	LaunchRate float64
	// SkipBaseline disables the use of parameter baselines for the first trial.
	SkipBaseline bool
}

// Validate checks the experiment definition.
func (e *Experiment) Validate() error {
	switch {
	case e.SearchSpace == nil || e.SearchSpace.Len() == 0:
		return fmt.Errorf("experiment %q has no parameters", e.Name)
	case e.Sampler == nil:
		return fmt.Errorf("experiment %q has no optimizer", e.Name)
	case e.Direction != trial.Maximize && e.Direction != trial.Minimize:
		return fmt.Errorf("invalid direction %q, must be one of: max|min", e.Direction)
	case e.NumTrials <= 0:
		return fmt.Errorf("number of trials must be positive, got %d", e.NumTrials)
	case e.HeartbeatInterval <= 0:
		return fmt.Errorf("heartbeat interval must be positive, got %s", e.HeartbeatInterval)
	case e.EarlyStopInterval != 0 && e.EarlyStopInterval < e.HeartbeatInterval:
		return fmt.Errorf("early stopping interval (%s) must not be less than the heartbeat interval (%s)", e.EarlyStopInterval, e.HeartbeatInterval)
	case e.EarlyStopMin < 0:
		return fmt.Errorf("early stopping minimum must not be negative, got %d", e.EarlyStopMin)
	case e.LaunchRate < 0:
		return fmt.Errorf("launch rate must not be negative, got %g", e.LaunchRate)
	}
	return nil
}

// Driver runs a single experiment.
type Driver struct {
	Experiment

	// Routine is the training routine run for every trial.
	Routine executor.Routine
	// Substrate runs the trial workers.
	Substrate executor.Substrate
	// Policy overrides the median stopping rule.
	Policy earlystop.Policy
	// Sink receives the summary of every trial as it completes.
	Sink sink.Publisher
	// Metrics are updated as the experiment progresses.
	Metrics *Metrics
	// Log receives progress messages.
	Log logr.Logger
	// RetryInterval overrides the initial delay between launch attempts while the substrate is unavailable.
	RetryInterval time.Duration

	state atomic.Int32
}

// State returns the current state of the driver; it is safe to call concurrently with Run.
func (d *Driver) State() State {
	return State(d.state.Load())
}

func (d *Driver) setState(log logr.Logger, s State) {
	if prev := State(d.state.Swap(int32(s))); prev != s {
		log.V(1).Info("Experiment state changed", "from", prev.String(), "to", s.String())
	}
}

// run holds the state of a single call to Run.
type run struct {
	*Driver
	log      logr.Logger
	pool     *executor.Pool
	policy   earlystop.Policy
	trials   []*trial.Trial
	byID     map[int]*trial.Trial
	stopping map[int]bool
}

// Run executes the experiment, returning once every trial is terminal. The result is returned even
// when an error occurs; it always contains every trial created.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	d.state.Store(int32(Initializing))
	if d.Direction == "" {
		d.Direction = trial.Maximize
	}
	result := &Result{Name: d.Name, RunID: uuid.New(), State: Initializing, Direction: d.Direction}

	if err := d.init(); err != nil {
		d.state.Store(int32(Failed))
		result.State = Failed
		return result, err
	}

	log := d.Log.WithValues("experiment", d.Name, "run", result.RunID.String())
	d.SearchSpace.Freeze()

	hb := heartbeat.New()
	defer hb.Close()

	r := &run{
		Driver:   d,
		log:      log,
		pool:     executor.NewPool(d.Substrate, hb, log),
		policy:   d.Policy,
		byID:     make(map[int]*trial.Trial, d.NumTrials),
		stopping: make(map[int]bool),
	}
	if d.RetryInterval > 0 {
		r.pool.RetryInterval = d.RetryInterval
	}
	if r.policy == nil {
		r.policy = earlystop.Never{}
		if d.EarlyStopInterval > 0 {
			r.policy = &earlystop.MedianRule{Direction: d.Direction, Min: d.EarlyStopMin}
		}
	}

	log.Info("Starting experiment", "trials", d.NumTrials, "workers", d.Substrate.Capacity(), "optimizer", d.Sampler.Name())
	d.setState(log, Running)
	err := r.loop(ctx, hb)
	result.Trials = r.trials

	if err != nil {
		d.setState(log, Failed)
		result.State = Failed
		result.Best = best(d.Direction, r.trials)
		log.Error(err, "Experiment failed", "trials", len(r.trials))
		return result, err
	}

	d.setState(log, Finalizing)
	result.Best = best(d.Direction, r.trials)
	d.setState(log, Done)
	result.State = Done

	if result.Best != nil {
		log.Info("Experiment completed", "best", result.Best.ID, "value", *result.Best.FinalMetric, "assignments", result.Best.Assignments.Format())
	} else {
		log.Info("Experiment completed without a result")
	}
	return result, nil
}

func (d *Driver) init() error {
	if d.Routine == nil {
		return errors.New("no training routine")
	}
	if d.Substrate == nil {
		return errors.New("no execution substrate")
	}
	if err := d.Validate(); err != nil {
		return err
	}
	if d.Sink == nil {
		d.Sink = sink.Discard
	}
	if d.Metrics == nil {
		d.Metrics, _ = NewMetrics(nil)
	}
	return nil
}

func (r *run) loop(ctx context.Context, hb *heartbeat.Channel) error {
	hbTicker := time.NewTicker(r.HeartbeatInterval)
	defer hbTicker.Stop()

	var esTick <-chan time.Time
	if r.EarlyStopInterval > 0 {
		esTicker := time.NewTicker(r.EarlyStopInterval)
		defer esTicker.Stop()
		esTick = esTicker.C
	}

	var limiter *rate.Limiter
	if r.LaunchRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.LaunchRate), 1)
	}

	var launchErr error
	var aborted, interrupted, pending bool
	var wake <-chan time.Time
	done := ctx.Done()

	for {
		// Launch as many trials as allowed, collecting outcomes first so workers are never blocked
		for launchErr == nil && !interrupted && ctx.Err() == nil && len(r.trials) < r.NumTrials && r.pool.HasCapacity() {
			if r.collect(ctx) {
				continue
			}
			if limiter != nil && !limiter.Allow() {
				if wake == nil {
					wake = time.After(time.Duration(float64(time.Second) / r.LaunchRate))
				}
				break
			}
			launchErr = r.launch(ctx)
		}

		if launchErr != nil && !aborted {
			// Stop what is running so the partial result can be collected
			aborted = true
			r.pool.CancelAll()
		}

		if r.running() == 0 && (len(r.trials) == r.NumTrials || launchErr != nil || interrupted) {
			break
		}

		select {
		case o := <-r.pool.Outcomes():
			r.record(ctx, o)

		case <-hb.Ready():
			pending = true

		case <-hbTicker.C:
			if pending {
				pending = false
				r.ingest(hb)
			}

		case <-esTick:
			pending = false
			r.ingest(hb)
			r.evaluate()

		case <-wake:
			wake = nil

		case <-done:
			r.log.Info("Experiment interrupted, stopping running trials", "running", r.running())
			interrupted = true
			done = nil
			r.pool.CancelAll()
		}
	}

	r.ingest(hb)
	if launchErr != nil {
		return launchErr
	}
	if interrupted {
		return ctx.Err()
	}
	return nil
}

// collect records a single waiting outcome, if there is one.
func (r *run) collect(ctx context.Context) bool {
	select {
	case o := <-r.pool.Outcomes():
		r.record(ctx, o)
		return true
	default:
		return false
	}
}

func (r *run) launch(ctx context.Context) error {
	id := len(r.trials) + 1
	t, err := r.newTrial(id)
	if err != nil {
		return fmt.Errorf("unable to sample trial %d: %w", id, err)
	}
	r.trials = append(r.trials, t)
	r.byID[id] = t
	r.Metrics.Trials.WithLabelValues(r.Name).Set(float64(len(r.trials)))

	log := r.log.WithValues("trial", id)
	if err := r.pool.Submit(ctx, t, r.Routine); err != nil {
		if ferr := t.Fail("LaunchFailed", err, time.Now()); ferr != nil {
			log.Error(ferr, "Failed to record launch failure")
		}
		r.Metrics.CompletedTrials.WithLabelValues(r.Name, t.Status.String()).Inc()
		r.publish(ctx, t)
		if !executor.IsUnavailable(err) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("unable to launch trial %d: %w", id, err)
	}

	r.Metrics.ActiveTrials.WithLabelValues(r.Name).Set(float64(r.running()))
	log.V(1).Info("Launched trial", "assignments", t.Assignments.Format(), "baseline", t.Baseline)
	return nil
}

func (r *run) newTrial(id int) (*trial.Trial, error) {
	if id == 1 && !r.SkipBaseline {
		if a, ok := r.SearchSpace.Baseline(); ok {
			t := trial.New(id, a, time.Now())
			t.Baseline = true
			return t, nil
		}
	}

	a, err := r.Sampler.Sample(r.SearchSpace)
	if err != nil {
		return nil, err
	}
	return trial.New(id, a, time.Now()), nil
}

// ingest applies the buffered heartbeats to the running trials.
func (r *run) ingest(hb *heartbeat.Channel) {
	updates := hb.Drain()
	for _, u := range updates {
		t, ok := r.byID[u.TrialID]
		if !ok || t.Status != trial.Running {
			continue
		}
		t.Observe(trial.MetricPoint{Step: u.Step, Value: u.Value, Time: u.Time})
	}
	if len(updates) > 0 {
		r.Metrics.HeartbeatUpdates.WithLabelValues(r.Name).Add(float64(len(updates)))
		r.log.V(1).Info("Ingested heartbeats", "updates", len(updates))
	}
}

func (r *run) evaluate() {
	r.Metrics.EarlyStopEvaluations.WithLabelValues(r.Name).Inc()

	decisions, err := r.policy.Evaluate(r.trials)
	if err != nil {
		r.log.Error(err, "Skipping early stopping evaluation")
		return
	}

	for _, dec := range decisions {
		if r.stopping[dec.TrialID] {
			continue
		}
		stopped, err := r.pool.Cancel(dec.TrialID)
		if err != nil {
			r.log.Error(err, "Failed to stop trial", "trial", dec.TrialID)
		}
		if !stopped {
			// The routine returned before it could be stopped, its outcome is already on the way
			continue
		}
		r.stopping[dec.TrialID] = true
		r.Metrics.EarlyStops.WithLabelValues(r.Name).Inc()
		r.log.Info("Stopping trial", "trial", dec.TrialID, "step", dec.Step, "value", dec.Value, "median", dec.Median)
	}
}

// record applies a worker outcome to its trial.
func (r *run) record(ctx context.Context, o executor.Outcome) {
	t, ok := r.byID[o.TrialID]
	if !ok {
		r.log.Info("Ignoring outcome for unknown trial", "trial", o.TrialID)
		return
	}
	log := r.log.WithValues("trial", t.ID)

	t.History = nil
	for _, p := range o.History {
		t.Observe(p)
	}

	var err error
	switch o.Status {
	case trial.Finished:
		err = t.Finish(*o.FinalMetric, o.Time)
	case trial.EarlyStopped:
		reason := "Interrupted"
		if r.stopping[t.ID] {
			reason = "MedianStoppingRule"
		}
		err = t.EarlyStop(reason, o.Time)
	default:
		err = t.Fail("RoutineFailed", o.Err, o.Time)
		log.Error(o.Err, "Trial failed")
	}
	if err != nil {
		log.Error(err, "Failed to record trial outcome")
		return
	}

	r.Metrics.ActiveTrials.WithLabelValues(r.Name).Set(float64(r.running()))
	r.Metrics.CompletedTrials.WithLabelValues(r.Name, t.Status.String()).Inc()
	if b := best(r.Direction, r.trials); b != nil {
		r.Metrics.BestValue.WithLabelValues(r.Name).Set(*b.FinalMetric)
	}
	r.publish(ctx, t)
}

func (r *run) publish(ctx context.Context, t *trial.Trial) {
	if err := r.Sink.Publish(ctx, t.Summary()); err != nil {
		r.log.Error(err, "Failed to publish trial", "trial", t.ID)
	}
}

func (r *run) running() int {
	var n int
	for _, t := range r.trials {
		if t.Status == trial.Running {
			n++
		}
	}
	return n
}
