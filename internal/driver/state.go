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
	"encoding/json"
	"fmt"
)

// State is the lifecycle state of an experiment run.
type State int32

const (
	// Initializing is the state while the experiment is being validated and prepared.
	Initializing State = iota
	// Running is the state while trials are being launched and monitored.
	Running
	// Finalizing is the state after every trial is terminal, while the result is computed.
	Finalizing
	// Done is the state of a successfully completed experiment.
	Done
	// Failed is the state of an experiment that could not complete.
	Failed

	maxState
)

var states = [...]string{
	Initializing: "INITIALIZING",
	Running:      "RUNNING",
	Finalizing:   "FINALIZING",
	Done:         "DONE",
	Failed:       "FAILED",
}

func (s State) String() string {
	if s < 0 || s >= maxState {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return states[s]
}

// MarshalJSON encodes the state as a string.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
