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

package routine

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	prom "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/thestormforge/optimize-driver/internal/executor"
	"github.com/thestormforge/optimize-driver/internal/searchspace"
	"github.com/thestormforge/optimize-driver/internal/template"
	"github.com/thestormforge/optimize-driver/internal/version"
)

// CaptureError describes problems that arise while capturing Prometheus metric values
type CaptureError struct {
	// A description of what went wrong
	Message string
	// The query that failed
	Query string
	// The time the query was evaluated at
	Time time.Time
}

func (e *CaptureError) Error() string {
	return e.Message
}

// Prometheus observes a training process that exports its metrics to Prometheus, evaluating a
// query at each step and reporting the result.
type Prometheus struct {
	// Experiment is the experiment name made available to the query template.
	Experiment string
	// Query is the PromQL query template, it must produce a scalar or single element vector.
	Query string
	// Steps is the number of times the query is evaluated.
	Steps int
	// StepInterval is the delay before each evaluation.
	StepInterval time.Duration
	// Engine renders the query template.
	Engine *template.Engine

	api promv1.API
}

// NewPrometheus returns a routine querying the Prometheus server at the supplied address.
func NewPrometheus(experiment, address, query string) (*Prometheus, error) {
	c, err := prom.NewClient(prom.Config{
		Address:      address,
		RoundTripper: version.UserAgent("", "prometheus", http.DefaultTransport),
	})
	if err != nil {
		return nil, err
	}

	return &Prometheus{
		Experiment: experiment,
		Query:      query,
		Steps:      1,
		Engine:     template.New(),
		api:        promv1.NewAPI(c),
	}, nil
}

// Run is the training routine.
func (p *Prometheus) Run(ctx context.Context, params searchspace.Assignments, r executor.Reporter) (float64, error) {
	info, _ := executor.TrialInfoFrom(ctx)
	data := template.NewTrialData(p.Experiment, info.ID, info.Baseline, params)
	start := time.Now()

	var value *float64
	var lastErr error
	for step := int64(1); step <= int64(p.Steps); step++ {
		if !sleep(ctx, p.StepInterval) {
			return last(value), ctx.Err()
		}

		v, err := p.capture(ctx, data.At(step, start, time.Now()))
		if err != nil {
			if ctx.Err() != nil {
				return last(value), ctx.Err()
			}
			// Missing data at a single step is not fatal
			lastErr = err
			continue
		}

		if err := r.Report(v, step); err != nil {
			return v, err
		}
		value = &v
	}

	if value == nil {
		if lastErr != nil {
			return 0, lastErr
		}
		return 0, fmt.Errorf("no metric values captured")
	}
	return *value, nil
}

func (p *Prometheus) capture(ctx context.Context, data *template.TrialData) (float64, error) {
	query, err := p.Engine.RenderQuery("query", p.Query, data)
	if err != nil {
		return 0, err
	}

	v, _, err := p.api.Query(ctx, query, data.Time)
	if err != nil {
		return 0, err
	}

	var result float64
	switch vv := v.(type) {
	case *model.Scalar:
		result = float64(vv.Value)
	case model.Vector:
		if len(vv) != 1 {
			return 0, &CaptureError{Message: fmt.Sprintf("expected a single element vector, got %d elements", len(vv)), Query: query, Time: data.Time}
		}
		result = float64(vv[0].Value)
	default:
		return 0, fmt.Errorf("expected scalar query result, got %s", v.Type())
	}

	if math.IsNaN(result) {
		err := &CaptureError{Message: "metric data not available", Query: query, Time: data.Time}
		if strings.HasPrefix(query, "scalar(") {
			err.Message += " (the scalar function may have received an input vector whose size is not 1)"
		}
		return 0, err
	}
	return result, nil
}

func last(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
