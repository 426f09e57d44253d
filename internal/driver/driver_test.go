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
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thestormforge/optimize-driver/internal/executor"
	"github.com/thestormforge/optimize-driver/internal/sampler"
	"github.com/thestormforge/optimize-driver/internal/searchspace"
	"github.com/thestormforge/optimize-driver/internal/sink"
	"github.com/thestormforge/optimize-driver/internal/trial"
)

func convnetSpace(t *testing.T) *searchspace.SearchSpace {
	s := &searchspace.SearchSpace{}
	require.NoError(t, s.AddInteger("kernel", 2, 8))
	require.NoError(t, s.AddInteger("pool", 2, 8))
	require.NoError(t, s.AddDouble("dropout", 0.01, 0.99))
	return s
}

// learningCurve reports an increasing accuracy that levels off at a value determined by the parameters.
func learningCurve(steps int64, delay time.Duration) executor.Routine {
	return func(ctx context.Context, params searchspace.Assignments, r executor.Reporter) (float64, error) {
		target := 1 - params.Float64("dropout")/2 - math.Abs(float64(params.Int64("kernel")-params.Int64("pool")))/20
		var acc float64
		for step := int64(1); step <= steps; step++ {
			select {
			case <-ctx.Done():
				return acc, ctx.Err()
			case <-time.After(delay):
			}
			acc = target * (1 - math.Exp(-float64(step)/3))
			if err := r.Report(acc, step); err != nil {
				return acc, err
			}
		}
		return acc, nil
	}
}

func newDriver(t *testing.T, routine executor.Routine) *Driver {
	rs, err := sampler.New(sampler.RandomSearch, 42)
	require.NoError(t, err)
	return &Driver{
		Experiment: Experiment{
			Name:              "convnet",
			SearchSpace:       convnetSpace(t),
			Sampler:           rs,
			Direction:         trial.Maximize,
			NumTrials:         15,
			HeartbeatInterval: 5 * time.Millisecond,
			EarlyStopInterval: 5 * time.Millisecond,
			EarlyStopMin:      5,
		},
		Routine:       routine,
		Substrate:     executor.NewLocal(4),
		Log:           logr.Discard(),
		RetryInterval: time.Millisecond,
	}
}

func assertTransitions(t *testing.T, tr *trial.Trial) {
	t.Helper()
	require.NotEmpty(t, tr.Transitions)
	prev := -1
	order := map[trial.Status]int{trial.Pending: 0, trial.Running: 1, trial.Finished: 2, trial.EarlyStopped: 2, trial.Failed: 2}
	for _, tt := range tr.Transitions {
		assert.Greater(t, order[tt.Status], prev, "trial %d transitions out of order", tr.ID)
		prev = order[tt.Status]
	}
	assert.True(t, tr.Status.IsTerminal(), "trial %d is %s", tr.ID, tr.Status)
}

func TestDriver_Convnet(t *testing.T) {
	var buf bytes.Buffer
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	d := newDriver(t, learningCurve(20, time.Millisecond))
	d.Sink = sink.NewWriter(&buf, sink.JSON)
	d.Metrics = m

	result, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Done, result.State)
	assert.Equal(t, Done, d.State())
	assert.NotEqual(t, "", result.RunID.String())
	require.Len(t, result.Trials, 15)

	var expected *trial.Trial
	for i, tr := range result.Trials {
		assert.Equal(t, i+1, tr.ID)
		assertTransitions(t, tr)
		assert.NotEqual(t, trial.Failed, tr.Status)
		require.NoError(t, d.SearchSpace.Validate(tr.Assignments))
		if tr.Status.IsCompleted() && tr.FinalMetric != nil && (expected == nil || *tr.FinalMetric > *expected.FinalMetric) {
			expected = tr
		}
	}
	require.NotNil(t, result.Best)
	assert.Equal(t, expected.ID, result.Best.ID)

	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 15)
	assert.Equal(t, 15.0, testutil.ToFloat64(m.Trials.WithLabelValues("convnet")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveTrials.WithLabelValues("convnet")))
	assert.Equal(t, *expected.FinalMetric, testutil.ToFloat64(m.BestValue.WithLabelValues("convnet")))
	assert.True(t, d.SearchSpace.Frozen())
}

func TestDriver_EarlyStopping(t *testing.T) {
	var count int32
	routine := func(ctx context.Context, _ searchspace.Assignments, r executor.Reporter) (float64, error) {
		n := atomic.AddInt32(&count, 1)
		// the first trials finish quickly with good values, later trials are bad and slow
		if n <= 3 {
			for step := int64(1); step <= 5; step++ {
				_ = r.Report(0.9, step)
			}
			return 0.9, nil
		}
		for step := int64(1); ; step++ {
			if err := r.Report(0.1, step); err != nil {
				return 0, err
			}
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(time.Millisecond):
			}
		}
	}

	d := newDriver(t, routine)
	d.NumTrials = 6
	d.EarlyStopMin = 3
	d.Substrate = executor.NewLocal(3)

	result, err := d.Run(context.Background())
	require.NoError(t, err)
	counts := result.Counts()
	assert.Equal(t, 3, counts[trial.Finished])
	assert.Equal(t, 3, counts[trial.EarlyStopped])
	for _, tr := range result.Trials {
		assertTransitions(t, tr)
		if tr.Status == trial.EarlyStopped {
			assert.Equal(t, "MedianStoppingRule", tr.Transitions[len(tr.Transitions)-1].Reason)
			require.NotNil(t, tr.FinalMetric)
			assert.Equal(t, 0.1, *tr.FinalMetric)
		}
	}
	assert.Equal(t, 0.9, *result.Best.FinalMetric)
	assert.Equal(t, 3.0, testutil.ToFloat64(d.Metrics.EarlyStops.WithLabelValues("convnet")))
}

func TestDriver_FailureIsolation(t *testing.T) {
	var count int32
	routine := func(ctx context.Context, params searchspace.Assignments, r executor.Reporter) (float64, error) {
		switch atomic.AddInt32(&count, 1) % 3 {
		case 0:
			return 0, errors.New("diverged")
		case 1:
			panic("bad kernel")
		}
		return params.Float64("dropout"), nil
	}

	d := newDriver(t, routine)
	d.NumTrials = 9
	d.EarlyStopInterval = 0

	result, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Done, result.State)
	require.Len(t, result.Trials, 9)

	counts := result.Counts()
	assert.Equal(t, 6, counts[trial.Failed])
	assert.Equal(t, 3, counts[trial.Finished])
	for _, tr := range result.Trials {
		assertTransitions(t, tr)
		if tr.Status == trial.Failed {
			assert.NotEmpty(t, tr.Error)
		}
	}
	require.NotNil(t, result.Best)
	assert.Equal(t, trial.Finished, result.Best.Status)
}

// flaky accepts a fixed number of tasks and is unavailable afterwards.
type flaky struct {
	*executor.Local
	accept int32
}

func (f *flaky) Submit(ctx context.Context, task executor.Task) (executor.Handle, error) {
	if atomic.AddInt32(&f.accept, -1) < 0 {
		return 0, &executor.PlatformUnavailableError{Reason: "cluster is down"}
	}
	return f.Local.Submit(ctx, task)
}

func TestDriver_PlatformFailure(t *testing.T) {
	block := func(ctx context.Context, _ searchspace.Assignments, r executor.Reporter) (float64, error) {
		_ = r.Report(0.5, 1)
		<-ctx.Done()
		return 0, ctx.Err()
	}

	d := newDriver(t, block)
	d.Substrate = &flaky{Local: executor.NewLocal(4), accept: 2}

	result, err := d.Run(context.Background())
	require.Error(t, err)
	assert.True(t, executor.IsUnavailable(err))
	assert.Equal(t, Failed, result.State)
	assert.Equal(t, Failed, d.State())

	require.Len(t, result.Trials, 3)
	assert.Equal(t, trial.EarlyStopped, result.Trials[0].Status)
	assert.Equal(t, trial.EarlyStopped, result.Trials[1].Status)
	assert.Equal(t, trial.Failed, result.Trials[2].Status)
	assert.Equal(t, []trial.Status{trial.Pending, trial.Failed}, []trial.Status{
		result.Trials[2].Transitions[0].Status,
		result.Trials[2].Transitions[1].Status,
	})
}

func TestDriver_Interrupted(t *testing.T) {
	started := make(chan struct{}, 15)
	block := func(ctx context.Context, _ searchspace.Assignments, r executor.Reporter) (float64, error) {
		_ = r.Report(0.25, 1)
		started <- struct{}{}
		<-ctx.Done()
		return 0, ctx.Err()
	}

	d := newDriver(t, block)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for i := 0; i < 4; i++ {
			<-started
		}
		cancel()
	}()

	result, err := d.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Failed, result.State)
	require.Len(t, result.Trials, 4)
	for _, tr := range result.Trials {
		assertTransitions(t, tr)
		assert.Equal(t, trial.EarlyStopped, tr.Status)
		assert.Equal(t, 0.25, *tr.FinalMetric)
	}
}

func TestDriver_Baseline(t *testing.T) {
	s := &searchspace.SearchSpace{}
	three := searchspace.FromInt64(3)
	require.NoError(t, s.Add(searchspace.ParameterSpec{
		Name:     "kernel",
		Type:     searchspace.Integer,
		Bounds:   &searchspace.Bounds{Min: "2", Max: "8"},
		Baseline: &three,
	}))

	d := newDriver(t, func(_ context.Context, p searchspace.Assignments, _ executor.Reporter) (float64, error) {
		return float64(p.Int64("kernel")), nil
	})
	d.SearchSpace = s
	d.NumTrials = 3
	d.Direction = trial.Minimize

	result, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Trials, 3)
	assert.True(t, result.Trials[0].Baseline)
	assert.Equal(t, int64(3), result.Trials[0].Assignments.Int64("kernel"))
	assert.False(t, result.Trials[1].Baseline)
	assert.LessOrEqual(t, *result.Best.FinalMetric, 3.0)
}

func TestDriver_LaunchRate(t *testing.T) {
	testCases := []struct {
		desc    string
		ctx     context.Context
		workers int
	}{
		{desc: "background", ctx: context.Background(), workers: 4},
		{desc: "todo", ctx: context.TODO(), workers: 4},
		{desc: "single worker", ctx: context.Background(), workers: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			d := newDriver(t, func(context.Context, searchspace.Assignments, executor.Reporter) (float64, error) {
				return 1, nil
			})
			d.NumTrials = 4
			d.LaunchRate = 100
			d.Substrate = executor.NewLocal(tc.workers)

			start := time.Now()
			result, err := d.Run(tc.ctx)
			require.NoError(t, err)
			assert.Equal(t, Done, result.State)
			require.Len(t, result.Trials, d.NumTrials)
			for i, tr := range result.Trials {
				assert.Equal(t, i+1, tr.ID)
				assert.Equal(t, trial.Finished, tr.Status)
			}
			assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
		})
	}
}

func TestDriver_HeartbeatsWithoutEarlyStopping(t *testing.T) {
	d := newDriver(t, func(ctx context.Context, _ searchspace.Assignments, r executor.Reporter) (float64, error) {
		if err := r.Report(0.5, 1); err != nil {
			return 0, err
		}
		time.Sleep(50 * time.Millisecond)
		return 0.6, nil
	})
	d.NumTrials = 2
	d.EarlyStopInterval = 0

	result, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Trials, 2)
	assert.GreaterOrEqual(t, testutil.ToFloat64(d.Metrics.HeartbeatUpdates.WithLabelValues("convnet")), 1.0)
	assert.Equal(t, 0.0, testutil.ToFloat64(d.Metrics.EarlyStopEvaluations.WithLabelValues("convnet")))
}

func TestExperiment_Validate(t *testing.T) {
	testCases := []struct {
		desc   string
		modify func(*Experiment)
	}{
		{desc: "no trials", modify: func(e *Experiment) { e.NumTrials = 0 }},
		{desc: "no heartbeat", modify: func(e *Experiment) { e.HeartbeatInterval = 0 }},
		{desc: "early stop too frequent", modify: func(e *Experiment) { e.EarlyStopInterval = time.Millisecond }},
		{desc: "negative minimum", modify: func(e *Experiment) { e.EarlyStopMin = -1 }},
		{desc: "bad direction", modify: func(e *Experiment) { e.Direction = "up" }},
		{desc: "no parameters", modify: func(e *Experiment) { e.SearchSpace = &searchspace.SearchSpace{} }},
		{desc: "no optimizer", modify: func(e *Experiment) { e.Sampler = nil }},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			d := newDriver(t, learningCurve(1, 0))
			tc.modify(&d.Experiment)

			result, err := d.Run(context.Background())
			assert.Error(t, err)
			assert.Equal(t, Failed, result.State)
			assert.Empty(t, result.Trials)
		})
	}
}

func TestNewMetrics_Reuse(t *testing.T) {
	reg := prometheus.NewRegistry()
	m1, err := NewMetrics(reg)
	require.NoError(t, err)
	m2, err := NewMetrics(reg)
	require.NoError(t, err)
	assert.Same(t, m1.Trials, m2.Trials)
	assert.Same(t, m1.EarlyStops, m2.EarlyStops)
}
