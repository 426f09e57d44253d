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

package template

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"text/template"
	"time"

	"github.com/thestormforge/optimize-driver/internal/searchspace"
)

// TrialData represents a trial during template evaluation
type TrialData struct {
	// Experiment name
	Experiment string
	// Trial number
	Trial int
	// Whether the trial is the baseline
	Baseline bool
	// Trial assignments
	Values map[string]interface{}
	// The step being evaluated
	Step int64
	// The time at which the trial started
	StartTime time.Time
	// The time of the evaluation
	Time time.Time
	// The time since the trial started expressed as a Prometheus range value
	Range string
}

// NewTrialData returns template data for the supplied trial assignments.
func NewTrialData(experiment string, trial int, baseline bool, a searchspace.Assignments) *TrialData {
	return &TrialData{
		Experiment: experiment,
		Trial:      trial,
		Baseline:   baseline,
		Values:     a.Map(),
	}
}

// At returns a copy of the data for evaluation at the specified step and time.
func (d *TrialData) At(step int64, start, now time.Time) *TrialData {
	dd := *d
	dd.Step = step
	dd.StartTime = start
	dd.Time = now
	dd.Range = fmt.Sprintf("%.0fs", math.Max(math.Ceil(now.Sub(start).Seconds()), 1))
	return &dd
}

// Names returns the sorted assignment names.
func (d *TrialData) Names() []string {
	names := make([]string, 0, len(d.Values))
	for k := range d.Values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Engine is used to render Go text templates
type Engine struct {
	FuncMap template.FuncMap
}

// New creates a new template engine
func New() *Engine {
	return &Engine{
		FuncMap: FuncMap(),
	}
}

// RenderArgs returns the rendered command line arguments
func (e *Engine) RenderArgs(args []string, data *TrialData) ([]string, error) {
	result := make([]string, 0, len(args))
	for i, arg := range args {
		b, err := e.render(fmt.Sprintf("arg%d", i), arg, data)
		if err != nil {
			return nil, err
		}
		result = append(result, b.String())
	}
	return result, nil
}

// RenderQuery returns the rendered metric query
func (e *Engine) RenderQuery(name, query string, data *TrialData) (string, error) {
	b, err := e.render(name, query, data)
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

func (e *Engine) render(name, text string, data interface{}) (*bytes.Buffer, error) {
	tmpl, err := template.New(name).Funcs(e.FuncMap).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, err
	}

	b := &bytes.Buffer{}
	if err = tmpl.Execute(b, data); err != nil {
		return nil, err
	}
	return b, nil
}
