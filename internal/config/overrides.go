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
	"fmt"
	"strconv"
)

// Overrides represent information which can be overridden in the configuration. Values are
// kept as strings so flags and environment variables can be merged before they are parsed.
type Overrides struct {
	Name              string
	Optimizer         string
	Direction         string
	NumTrials         string
	HeartbeatInterval string
	EarlyStopInterval string
	EarlyStopMin      string
	Workers           string
	Seed              string
	LaunchRate        string
	RoutineType       string
	SinkFile          string
}

// overridesLoader applies the overrides on top of the file configuration
func overridesLoader(cfg *OptimizeConfig) error {
	o, l := &cfg.Overrides, &cfg.data

	mergeString(&l.Name, o.Name)
	mergeString(&l.Optimizer, o.Optimizer)
	mergeString(&l.Direction, o.Direction)
	mergeString(&l.Routine.Type, o.RoutineType)
	mergeString(&l.Sink.File, o.SinkFile)

	if err := mergeInt(&l.NumTrials, o.NumTrials, EnvNumTrials); err != nil {
		return err
	}
	if err := mergeInt(&l.Workers, o.Workers, EnvWorkers); err != nil {
		return err
	}
	if o.EarlyStopMin != "" {
		var v int
		if err := mergeInt(&v, o.EarlyStopMin, EnvEarlyStopMin); err != nil {
			return err
		}
		l.EarlyStopMin = &v
	}
	if o.Seed != "" {
		v, err := strconv.ParseInt(o.Seed, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seed %q: %w", o.Seed, err)
		}
		l.Seed = v
	}
	if o.LaunchRate != "" {
		v, err := strconv.ParseFloat(o.LaunchRate, 64)
		if err != nil {
			return fmt.Errorf("invalid launch rate %q: %w", o.LaunchRate, err)
		}
		l.LaunchRate = v
	}
	if err := mergeDuration(&l.HeartbeatInterval, o.HeartbeatInterval); err != nil {
		return err
	}
	if err := mergeDuration(&l.EarlyStopInterval, o.EarlyStopInterval); err != nil {
		return err
	}
	return nil
}

// mergeString overwrites s1 with a non-empty s2
func mergeString(s1 *string, s2 string) {
	if s2 != "" {
		*s1 = s2
	}
}

func mergeInt(i *int, s, name string) error {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid value %q for %s: %w", s, name, err)
	}
	*i = v
	return nil
}

func mergeDuration(d *Duration, s string) error {
	if s == "" {
		return nil
	}
	v, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
