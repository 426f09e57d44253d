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
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Task is a unit of work run by a substrate. The context is cancelled when the task is cancelled.
type Task func(ctx context.Context)

// Handle identifies a submitted task.
type Handle uint64

// Substrate is the platform trial workers run on.
type Substrate interface {
	// Submit starts the task, failing with a PlatformUnavailableError if it cannot be started.
	Submit(ctx context.Context, task Task) (Handle, error)
	// Cancel requests termination of the task.
	Cancel(h Handle) error
	// IsDone checks to see if the task has returned.
	IsDone(h Handle) bool
	// Capacity is the maximum number of tasks that can run at once.
	Capacity() int
}

// Local is a substrate that runs tasks on goroutines in the current process.
type Local struct {
	capacity int
	sem      *semaphore.Weighted

	mu     sync.Mutex
	next   Handle
	tasks  map[Handle]context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

var _ Substrate = &Local{}

// NewLocal returns a local substrate with the specified number of worker slots; a non-positive
// number of workers uses the number of CPUs.
func NewLocal(workers int) *Local {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Local{
		capacity: workers,
		sem:      semaphore.NewWeighted(int64(workers)),
		tasks:    make(map[Handle]context.CancelFunc),
	}
}

// Submit runs the task on a new goroutine if a worker slot is free.
func (l *Local) Submit(ctx context.Context, task Task) (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, &PlatformUnavailableError{Reason: "substrate is closed"}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !l.sem.TryAcquire(1) {
		return 0, &PlatformUnavailableError{Reason: "no free worker slots"}
	}

	l.next++
	h := l.next
	tctx, cancel := context.WithCancel(ctx)
	l.tasks[h] = cancel
	l.wg.Add(1)

	go func() {
		defer l.wg.Done()
		defer l.sem.Release(1)
		defer l.remove(h)
		task(tctx)
	}()

	return h, nil
}

// Cancel cancels the context of the task. Cancelling a task that is done is a no-op.
func (l *Local) Cancel(h Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cancel, ok := l.tasks[h]; ok {
		cancel()
	}
	return nil
}

// IsDone checks to see if the task has returned.
func (l *Local) IsDone(h Handle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.tasks[h]
	return !ok
}

// Capacity returns the number of worker slots.
func (l *Local) Capacity() int {
	return l.capacity
}

// Close rejects further submissions, cancels running tasks and waits for them to return.
func (l *Local) Close() error {
	l.mu.Lock()
	l.closed = true
	for _, cancel := range l.tasks {
		cancel()
	}
	l.mu.Unlock()

	l.wg.Wait()
	return nil
}

func (l *Local) remove(h Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cancel, ok := l.tasks[h]; ok {
		cancel()
		delete(l.tasks, h)
	}
}
