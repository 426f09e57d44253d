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
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/thestormforge/optimize-driver/internal/sampler"
	"github.com/thestormforge/optimize-driver/internal/searchspace"
	"github.com/thestormforge/optimize-driver/internal/trial"
)

// Loader is used to initially populate a launch configuration
type Loader func(cfg *OptimizeConfig) error

// OptimizeConfig is the structure used to manage configuration data
type OptimizeConfig struct {
	// Filename is the path to the launch configuration file, it may be blank
	Filename string
	// Overrides are values (typically from flags or the environment) that replace the file values
	Overrides Overrides

	data Launch
}

// MarshalJSON ensures only the configuration data is marshalled
func (cfg *OptimizeConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(cfg.data)
}

// Load will populate the launch configuration
func (cfg *OptimizeConfig) Load(extra ...Loader) error {
	var loaders []Loader
	loaders = append(loaders, fileLoader)
	loaders = append(loaders, extra...)
	loaders = append(loaders, envLoader, overridesLoader, defaultLoader)
	for i := range loaders {
		if err := loaders[i](cfg); err != nil {
			return err
		}
	}
	return nil
}

// Launch returns the loaded launch configuration
func (cfg *OptimizeConfig) Launch() *Launch {
	return &cfg.data
}

// NewSearchSpace returns a new search space for the configured parameters
func (l *Launch) NewSearchSpace() (*searchspace.SearchSpace, error) {
	return searchspace.New(l.SearchSpace...)
}

// Validate checks the configuration for errors
func (l *Launch) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("experiment name is required")
	}
	if _, err := sampler.New(l.Optimizer, 0); err != nil {
		return err
	}
	if _, err := trial.ParseDirection(l.Direction); err != nil {
		return err
	}
	if l.NumTrials <= 0 {
		return fmt.Errorf("numTrials must be greater than zero, got %d", l.NumTrials)
	}
	if l.HeartbeatInterval <= 0 {
		return fmt.Errorf("hbInterval must be greater than zero, got %s", l.HeartbeatInterval)
	}
	if l.EarlyStopInterval < l.HeartbeatInterval {
		return fmt.Errorf("esInterval (%s) must be at least hbInterval (%s)", l.EarlyStopInterval, l.HeartbeatInterval)
	}
	if l.EarlyStopMin == nil || *l.EarlyStopMin < 0 {
		return fmt.Errorf("esMin must not be negative")
	}
	if l.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", l.Workers)
	}
	if l.LaunchRate < 0 {
		return fmt.Errorf("launchRate must not be negative, got %g", l.LaunchRate)
	}
	if len(l.SearchSpace) == 0 {
		return fmt.Errorf("searchSpace must contain at least one parameter")
	}
	if _, err := l.NewSearchSpace(); err != nil {
		return err
	}
	return l.Routine.validate()
}

func (r *Routine) validate() error {
	switch r.Type {
	case RoutineSynthetic:
	case RoutineCommand:
		if len(r.Command) == 0 {
			return fmt.Errorf("command routine requires a command")
		}
	case RoutinePrometheus:
		if r.Query == "" {
			return fmt.Errorf("prometheus routine requires a query")
		}
		if _, err := url.Parse(r.Address); err != nil {
			return fmt.Errorf("invalid prometheus address: %w", err)
		}
	default:
		return fmt.Errorf("unknown routine type %q, must be one of: %s|%s|%s", r.Type, RoutineSynthetic, RoutineCommand, RoutinePrometheus)
	}
	if r.Steps < 0 {
		return fmt.Errorf("routine steps must not be negative, got %d", r.Steps)
	}
	if r.StepInterval < 0 {
		return fmt.Errorf("routine stepInterval must not be negative, got %s", time.Duration(r.StepInterval))
	}
	return nil
}
