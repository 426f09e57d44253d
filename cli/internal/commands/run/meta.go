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

package run

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/thestormforge/optimize-driver/internal/driver"
	"github.com/thestormforge/optimize-driver/internal/trial"
)

// report is the printable form of an experiment result
type report struct {
	*driver.Result
	Trials []trial.Summary `json:"trials"`
	Best   *trial.Summary  `json:"best,omitempty"`
}

func newReport(r *driver.Result) *report {
	rpt := &report{Result: r, Trials: r.Summaries()}
	if r.Best != nil {
		b := r.Best.Summary()
		rpt.Best = &b
	}
	return rpt
}

// trialMeta extracts table columns from trial summaries
type trialMeta struct{}

func (trialMeta) ExtractList(obj interface{}) ([]interface{}, error) {
	var summaries []trial.Summary
	switch o := obj.(type) {
	case *report:
		summaries = o.Trials
	case []trial.Summary:
		summaries = o
	case trial.Summary:
		summaries = []trial.Summary{o}
	default:
		return nil, fmt.Errorf("unable to list trials from %T", obj)
	}

	l := make([]interface{}, len(summaries))
	for i := range summaries {
		l[i] = &summaries[i]
	}
	return l, nil
}

func (trialMeta) Columns(_ interface{}, outputFormat string) []string {
	switch outputFormat {
	case "wide", "csv":
		return []string{"id", "status", "phase", "step", "value", "duration", "assignments", "error"}
	}
	return []string{"id", "status", "value", "assignments"}
}

func (trialMeta) ExtractValue(obj interface{}, column string) (string, error) {
	s, ok := obj.(*trial.Summary)
	if !ok {
		return "", fmt.Errorf("expected trial summary, got %T", obj)
	}

	switch column {
	case "id", "name":
		id := strconv.Itoa(s.ID)
		if s.Baseline && column == "id" {
			id += "*"
		}
		return id, nil
	case "status":
		return s.Status.String(), nil
	case "phase":
		return s.Phase, nil
	case "step":
		if s.Step == nil {
			return "", nil
		}
		return strconv.FormatInt(*s.Step, 10), nil
	case "value":
		return s.ValueText(), nil
	case "duration":
		return s.Duration, nil
	case "assignments":
		return s.AssignmentsText(), nil
	case "error":
		return s.Error, nil
	}
	return "", fmt.Errorf("unable to extract: %s", column)
}

func (trialMeta) Header(outputFormat string, column string) string {
	if outputFormat == "csv" {
		return column
	}
	return strings.ToUpper(column)
}
