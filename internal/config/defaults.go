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

package config

import (
	"time"

	"github.com/thestormforge/optimize-driver/internal/sampler"
	"github.com/thestormforge/optimize-driver/internal/trial"
)

// Defaults for values not otherwise configured
const (
	DefaultName              = "experiment"
	DefaultHeartbeatInterval = Duration(time.Second)
	DefaultEarlyStopMin      = 10
	DefaultSteps             = 10
	DefaultStepInterval      = Duration(time.Second)
)

// The default loader only fills in blank values; errors here are limited to unusable configurations

func defaultLoader(cfg *OptimizeConfig) error {
	l := &cfg.data

	defaultString(&l.Name, DefaultName)
	defaultString(&l.Optimizer, sampler.RandomSearch)
	defaultString(&l.Direction, string(trial.Maximize))

	if l.HeartbeatInterval == 0 {
		l.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if l.EarlyStopInterval == 0 {
		l.EarlyStopInterval = l.HeartbeatInterval
	}
	if l.EarlyStopMin == nil {
		esMin := DefaultEarlyStopMin
		l.EarlyStopMin = &esMin
	}

	defaultRoutine(&l.Routine)
	return nil
}

func defaultRoutine(r *Routine) {
	switch {
	case r.Type != "":
	case len(r.Command) > 0:
		r.Type = RoutineCommand
	case r.Query != "":
		r.Type = RoutinePrometheus
	default:
		r.Type = RoutineSynthetic
	}

	if r.Type == RoutinePrometheus {
		defaultString(&r.Address, "http://localhost:9090")
	}
	if r.Steps == 0 {
		r.Steps = DefaultSteps
	}
	if r.StepInterval == 0 {
		r.StepInterval = DefaultStepInterval
	}
}

// defaultString overwrites an empty s1 with the value of s2
func defaultString(s1 *string, s2 string) {
	if *s1 == "" {
		*s1 = s2
	}
}
