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

// Package heartbeat buffers the latest progress report of every running trial.
package heartbeat

import (
	"sort"
	"sync"
	"time"
)

// Update is a single progress report from a trial worker.
type Update struct {
	// TrialID identifies the reporting trial.
	TrialID int
	// Step is the progress index of the report.
	Step int64
	// Value is the reported metric value.
	Value float64
	// Time is when the worker reported the value.
	Time time.Time
	// Seq is a per-trial sequence number used to discard out-of-order reports.
	Seq uint64
}

// Channel is a coalescing, non-blocking mailbox from trial workers to the driver. Only the most
// recent update for each trial is retained between drains.
type Channel struct {
	mu     sync.Mutex
	latest map[int]Update
	closed bool
	ready  chan struct{}
}

// New returns a new heartbeat channel.
func New() *Channel {
	return &Channel{
		latest: make(map[int]Update),
		ready:  make(chan struct{}, 1),
	}
}

// Send buffers the update, replacing any earlier update for the same trial. Send never blocks.
// It returns false if the update was dropped because it is stale or the channel is closed.
func (c *Channel) Send(u Update) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	if prev, ok := c.latest[u.TrialID]; ok && u.Seq < prev.Seq {
		return false
	}
	c.latest[u.TrialID] = u

	select {
	case c.ready <- struct{}{}:
	default:
	}
	return true
}

// Drain returns the buffered updates ordered by trial ID and clears the buffer.
func (c *Channel) Drain() []Update {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.latest) == 0 {
		return nil
	}

	updates := make([]Update, 0, len(c.latest))
	for id, u := range c.latest {
		updates = append(updates, u)
		delete(c.latest, id)
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].TrialID < updates[j].TrialID })
	return updates
}

// Ready returns a channel that receives a value after new updates are buffered.
func (c *Channel) Ready() <-chan struct{} {
	return c.ready
}

// Len returns the number of trials with a buffered update.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.latest)
}

// Close causes all further sends to be dropped. Buffered updates can still be drained.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
