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

package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thestormforge/optimize-driver/internal/heartbeat"
	"github.com/thestormforge/optimize-driver/internal/searchspace"
	"github.com/thestormforge/optimize-driver/internal/trial"
)

func TestLocal(t *testing.T) {
	l := NewLocal(1)
	assert.Equal(t, 1, l.Capacity())

	started := make(chan struct{})
	h, err := l.Submit(context.Background(), func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	require.NoError(t, err)
	<-started
	assert.False(t, l.IsDone(h))

	_, err = l.Submit(context.Background(), func(context.Context) {})
	assert.True(t, IsUnavailable(err), "capacity exhausted")

	require.NoError(t, l.Cancel(h))
	assert.Eventually(t, func() bool { return l.IsDone(h) }, time.Second, time.Millisecond)

	require.NoError(t, l.Close())
	_, err = l.Submit(context.Background(), func(context.Context) {})
	assert.True(t, IsUnavailable(err), "closed")
}

func TestLocal_DefaultCapacity(t *testing.T) {
	assert.Greater(t, NewLocal(0).Capacity(), 0)
}

func TestPool_Outcomes(t *testing.T) {
	testCases := []struct {
		desc    string
		routine Routine
		status  trial.Status
		final   *float64
		history int
		panic   bool
	}{
		{
			desc: "finished",
			routine: func(_ context.Context, _ searchspace.Assignments, r Reporter) (float64, error) {
				for i := int64(1); i <= 3; i++ {
					if err := r.Report(float64(i)/10, i); err != nil {
						return 0, err
					}
				}
				return 0.9, nil
			},
			status:  trial.Finished,
			final:   floatPtr(0.9),
			history: 3,
		},
		{
			desc: "failed",
			routine: func(_ context.Context, _ searchspace.Assignments, r Reporter) (float64, error) {
				_ = r.Report(0.1, 1)
				return 0, errors.New("out of memory")
			},
			status:  trial.Failed,
			history: 1,
		},
		{
			desc: "panicked",
			routine: func(context.Context, searchspace.Assignments, Reporter) (float64, error) {
				panic("segfault")
			},
			status: trial.Failed,
			panic:  true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			p := NewPool(NewLocal(2), heartbeat.New(), logr.Discard())
			tr := trial.New(1, nil, time.Now())

			require.NoError(t, p.Submit(context.Background(), tr, tc.routine))
			assert.Equal(t, trial.Running, tr.Status)

			o := receive(t, p)
			assert.Equal(t, 1, o.TrialID)
			assert.Equal(t, tc.status, o.Status)
			assert.Equal(t, tc.final, o.FinalMetric)
			assert.Len(t, o.History, tc.history)
			if tc.status == trial.Failed {
				var tee *TrialExecutionError
				require.ErrorAs(t, o.Err, &tee)
				assert.Equal(t, tc.panic, tee.Panic)
			}
			assert.Equal(t, 0, p.Active())
		})
	}
}

func TestPool_Cancel(t *testing.T) {
	hb := heartbeat.New()
	p := NewPool(NewLocal(1), hb, logr.Discard())
	tr := trial.New(4, nil, time.Now())

	reported := make(chan struct{})
	var stoppedErr atomic.Value
	routine := func(ctx context.Context, _ searchspace.Assignments, r Reporter) (float64, error) {
		_ = r.Report(0.4, 1)
		_ = r.Report(0.5, 2)
		close(reported)
		<-ctx.Done()
		stoppedErr.Store(r.Report(0.6, 3))
		return 0.99, nil
	}
	require.NoError(t, p.Submit(context.Background(), tr, routine))
	assert.False(t, p.HasCapacity())

	<-reported
	updates := hb.Drain()
	require.Len(t, updates, 1)
	assert.Equal(t, int64(2), updates[0].Step)

	stopped, err := p.Cancel(4)
	require.NoError(t, err)
	assert.True(t, stopped)
	o := receive(t, p)
	assert.Equal(t, trial.EarlyStopped, o.Status)
	require.NotNil(t, o.FinalMetric)
	assert.Equal(t, 0.5, *o.FinalMetric)
	assert.Len(t, o.History, 2)
	assert.Equal(t, ErrStopped, stoppedErr.Load())
	assert.True(t, p.HasCapacity())

	stopped, err = p.Cancel(4)
	require.NoError(t, err)
	assert.False(t, stopped)
}

func TestWorker_Stop(t *testing.T) {
	w := &worker{id: 1}
	assert.True(t, w.stop())
	assert.False(t, w.stop())

	w = &worker{id: 2}
	_, _, status := w.finish()
	assert.Equal(t, trial.Running, status)
	assert.False(t, w.stop(), "a returned routine cannot be stopped")
}

func TestPool_CallerCancel(t *testing.T) {
	p := NewPool(NewLocal(1), heartbeat.New(), logr.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	routine := func(ctx context.Context, _ searchspace.Assignments, r Reporter) (float64, error) {
		_ = r.Report(0.3, 1)
		<-ctx.Done()
		return 0, ctx.Err()
	}
	require.NoError(t, p.Submit(ctx, trial.New(1, nil, time.Now()), routine))
	cancel()

	o := receive(t, p)
	assert.Equal(t, trial.EarlyStopped, o.Status)
	assert.Equal(t, 0.3, *o.FinalMetric)
}

func TestReporter_StepOrder(t *testing.T) {
	w := &worker{id: 1}
	assert.NoError(t, w.Report(0.1, 5))
	assert.NoError(t, w.Report(0.2, 5))
	assert.Error(t, w.Report(0.3, 4))
	assert.Len(t, w.history, 2)
}

type unavailable struct {
	attempts  int32
	succeedOn int32
}

func (u *unavailable) Submit(ctx context.Context, task Task) (Handle, error) {
	n := atomic.AddInt32(&u.attempts, 1)
	if u.succeedOn > 0 && n >= u.succeedOn {
		go task(ctx)
		return Handle(n), nil
	}
	return 0, &PlatformUnavailableError{Reason: "maintenance"}
}
func (u *unavailable) Cancel(Handle) error { return nil }
func (u *unavailable) IsDone(Handle) bool  { return true }
func (u *unavailable) Capacity() int       { return 1 }

func TestPool_SubmitRetry(t *testing.T) {
	routine := func(context.Context, searchspace.Assignments, Reporter) (float64, error) { return 1, nil }

	testCases := []struct {
		desc      string
		succeedOn int32
		attempts  int32
		failed    bool
	}{
		{desc: "transient", succeedOn: 3, attempts: 3},
		{desc: "exhausted", attempts: 3, failed: true},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			s := &unavailable{succeedOn: tc.succeedOn}
			p := NewPool(s, nil, logr.Discard())
			p.MaxRetries = 2
			p.RetryInterval = time.Millisecond
			tr := trial.New(1, nil, time.Now())

			err := p.Submit(context.Background(), tr, routine)
			assert.Equal(t, tc.attempts, atomic.LoadInt32(&s.attempts))
			if tc.failed {
				assert.True(t, IsUnavailable(err))
				assert.Equal(t, trial.Pending, tr.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, trial.Finished, receive(t, p).Status)
		})
	}
}

func receive(t *testing.T, p *Pool) Outcome {
	t.Helper()
	select {
	case o := <-p.Outcomes():
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcome")
		return Outcome{}
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestPool_RoutineContext(t *testing.T) {
	p := NewPool(NewLocal(1), nil, logr.Discard())
	tr := trial.New(8, nil, time.Now())
	tr.Baseline = true

	var info TrialInfo
	routine := func(ctx context.Context, _ searchspace.Assignments, _ Reporter) (float64, error) {
		var ok bool
		if info, ok = TrialInfoFrom(ctx); !ok {
			return 0, errors.New("missing trial info")
		}
		_, err := logr.FromContext(ctx)
		return 1, err
	}
	require.NoError(t, p.Submit(context.Background(), tr, routine))
	o := receive(t, p)
	require.NoError(t, o.Err)
	assert.Equal(t, TrialInfo{ID: 8, Baseline: true}, info)
}
