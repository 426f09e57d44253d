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
	"errors"
	"fmt"
)

// ErrStopped is returned to a training routine that reports after its trial was asked to stop.
var ErrStopped = errors.New("trial stopped")

// PlatformUnavailableError indicates the execution substrate cannot accept work.
type PlatformUnavailableError struct {
	Reason string
	Err    error
}

func (e *PlatformUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("execution platform unavailable: %s: %v", e.Reason, e.Err)
	}
	return "execution platform unavailable: " + e.Reason
}

func (e *PlatformUnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable checks to see if the error indicates the substrate could not accept work.
func IsUnavailable(err error) bool {
	var pue *PlatformUnavailableError
	return errors.As(err, &pue)
}

// TrialExecutionError indicates a training routine failed.
type TrialExecutionError struct {
	TrialID int
	Err     error
	Panic   bool
}

func (e *TrialExecutionError) Error() string {
	if e.Panic {
		return fmt.Sprintf("trial %d panicked: %v", e.TrialID, e.Err)
	}
	return fmt.Sprintf("trial %d failed: %v", e.TrialID, e.Err)
}

func (e *TrialExecutionError) Unwrap() error {
	return e.Err
}

// IsTrialExecutionError checks to see if the error is the failure of a training routine.
func IsTrialExecutionError(err error) bool {
	var tee *TrialExecutionError
	return errors.As(err, &tee)
}
