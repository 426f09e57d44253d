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

import "context"

// TrialInfo describes the trial a routine is running for.
type TrialInfo struct {
	ID       int
	Baseline bool
}

type trialInfoKey struct{}

// WithTrialInfo returns a context carrying the trial information.
func WithTrialInfo(ctx context.Context, info TrialInfo) context.Context {
	return context.WithValue(ctx, trialInfoKey{}, info)
}

// TrialInfoFrom returns the trial information of a routine's context.
func TrialInfoFrom(ctx context.Context) (TrialInfo, bool) {
	info, ok := ctx.Value(trialInfoKey{}).(TrialInfo)
	return info, ok
}
