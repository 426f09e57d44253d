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

// Package routine provides training routines that can be configured for an experiment.
package routine

import (
	"context"
	"fmt"
	"time"

	"github.com/thestormforge/optimize-driver/internal/config"
	"github.com/thestormforge/optimize-driver/internal/executor"
	"github.com/thestormforge/optimize-driver/internal/searchspace"
	"github.com/thestormforge/optimize-driver/internal/template"
)

// New returns the training routine described by the launch configuration.
func New(l *config.Launch, space *searchspace.SearchSpace) (executor.Routine, error) {
	r := &l.Routine
	switch r.Type {
	case config.RoutineSynthetic, "":
		s := &Synthetic{
			Space:        space,
			Steps:        r.Steps,
			StepInterval: r.StepInterval.Duration(),
			Noise:        r.Noise,
			Seed:         l.Seed,
		}
		return s.Run, nil

	case config.RoutineCommand:
		c := &Command{
			Experiment: l.Name,
			Command:    r.Command,
			Env:        r.Env,
			Dir:        r.Dir,
			Engine:     template.New(),
		}
		return c.Run, nil

	case config.RoutinePrometheus:
		p, err := NewPrometheus(l.Name, r.Address, r.Query)
		if err != nil {
			return nil, err
		}
		p.Steps = r.Steps
		p.StepInterval = r.StepInterval.Duration()
		return p.Run, nil

	default:
		return nil, fmt.Errorf("unknown routine type %q", r.Type)
	}
}

// sleep waits for the duration or until the context is done.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
