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

package trial

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status represents the lifecycle state of a trial. Status values are
// ordered so that terminal states compare greater than Running.
type Status int

const (
	// Pending is the initial status of a trial that has not been launched yet.
	Pending Status = iota
	// Running is the status of a trial that has been launched on a worker.
	Running
	// Finished indicates the training routine returned a final metric.
	Finished
	// EarlyStopped indicates the trial was cancelled by the stopping policy (or the driver).
	EarlyStopped
	// Failed indicates the training routine (or its launch) failed.
	Failed

	maxStatus
)

var statuses = [...]string{
	Pending:      "PENDING",
	Running:      "RUNNING",
	Finished:     "FINISHED",
	EarlyStopped: "EARLY_STOPPED",
	Failed:       "FAILED",
}

// String returns the status as an upper-case string.
func (s Status) String() string {
	if s < 0 || s >= maxStatus {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statuses[s]
}

// IsTerminal checks to see if the status can never change again.
func (s Status) IsTerminal() bool {
	return s >= Finished && s < maxStatus
}

// IsCompleted checks to see if the status counts towards the early stopping
// reference population (failed trials do not).
func (s Status) IsCompleted() bool {
	return s == Finished || s == EarlyStopped
}

// MarshalJSON encodes the status as a string.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the status from a string.
func (s *Status) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	for i := range statuses {
		if strings.EqualFold(statuses[i], str) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown trial status %q", str)
}

// Direction is the optimization direction of the experiment metric.
type Direction string

const (
	// Maximize prefers larger metric values
	Maximize Direction = "max"
	// Minimize prefers smaller metric values
	Minimize Direction = "min"
)

// ParseDirection returns the direction for the supplied name.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "max", "maximize":
		return Maximize, nil
	case "min", "minimize":
		return Minimize, nil
	default:
		return "", fmt.Errorf("unknown direction %q, must be one of: max|min", s)
	}
}

// Better checks to see if a is strictly better then b.
func (d Direction) Better(a, b float64) bool {
	if d == Minimize {
		return a < b
	}
	return a > b
}
