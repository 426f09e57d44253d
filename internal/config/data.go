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
	"strconv"
	"strings"
	"time"

	"github.com/thestormforge/optimize-driver/internal/searchspace"
)

// Launch is the launch configuration of an experiment
type Launch struct {
	// Name of the experiment
	Name string `json:"name,omitempty"`
	// Optimizer is the name of the sampler used to generate trial assignments
	Optimizer string `json:"optimizer,omitempty"`
	// Direction of the optimization, "max" or "min"
	Direction string `json:"direction,omitempty"`
	// NumTrials is the total number of trials to run
	NumTrials int `json:"numTrials,omitempty"`
	// HeartbeatInterval is how often intermediate metrics are collected
	HeartbeatInterval Duration `json:"hbInterval,omitempty"`
	// EarlyStopInterval is how often the early stopping policy is evaluated
	EarlyStopInterval Duration `json:"esInterval,omitempty"`
	// EarlyStopMin is the number of completed trials required before early stopping
	EarlyStopMin *int `json:"esMin,omitempty"`
	// Workers is the number of trials that may run concurrently
	Workers int `json:"workers,omitempty"`
	// Seed is used to initialize the optimizer, zero is non-deterministic
	Seed int64 `json:"seed,omitempty"`
	// LaunchRate is the maximum number of trials launched per second, zero is unlimited
	LaunchRate float64 `json:"launchRate,omitempty"`
	// SearchSpace is the list of parameters to explore
	SearchSpace []searchspace.ParameterSpec `json:"searchSpace,omitempty"`
	// Routine describes the training routine run for each trial
	Routine Routine `json:"routine,omitempty"`
	// Sink describes where trial results are published
	Sink Sink `json:"sink,omitempty"`
}

// Routine types
const (
	RoutineSynthetic  = "synthetic"
	RoutineCommand    = "command"
	RoutinePrometheus = "prometheus"
)

// Routine is the training routine configuration
type Routine struct {
	// Type is one of "synthetic", "command" or "prometheus"
	Type string `json:"type,omitempty"`

	// Command is the program (and arguments) to run, each element may be a template
	Command []string `json:"command,omitempty"`
	// Env is additional environment variables for the command
	Env map[string]string `json:"env,omitempty"`
	// Dir is the working directory of the command
	Dir string `json:"dir,omitempty"`

	// Address is the Prometheus server URL
	Address string `json:"address,omitempty"`
	// Query is the PromQL query template evaluated at each step
	Query string `json:"query,omitempty"`

	// Steps is the number of steps for synthetic and Prometheus routines
	Steps int `json:"steps,omitempty"`
	// StepInterval is the delay between steps for synthetic and Prometheus routines
	StepInterval Duration `json:"stepInterval,omitempty"`
	// Noise is the standard deviation of the noise added to synthetic values
	Noise float64 `json:"noise,omitempty"`
}

// Sink is the result publishing configuration
type Sink struct {
	// File is where trial summaries are written, "-" for standard output
	File string `json:"file,omitempty"`
	// Format is "json" or "yaml", the default is based on the file extension
	Format string `json:"format,omitempty"`
	// Quiet disables logging of each completed trial
	Quiet bool `json:"quiet,omitempty"`
}

// Duration is a time.Duration which can be expressed as a number of seconds or a duration string
type Duration time.Duration

// ParseDuration parses a number of seconds or a Go duration string.
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q, expected seconds or a duration like \"1m30s\"", s)
	}
	return Duration(d), nil
}

// Duration returns the value as a time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON writes the duration as a string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON reads the duration from either a number of seconds or a string
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}

	v, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
