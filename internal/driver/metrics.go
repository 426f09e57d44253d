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
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors updated by a driver.
type Metrics struct {
	// Trials holds the number of trials created for an experiment.
	Trials *prometheus.GaugeVec
	// ActiveTrials holds the number of trials currently running for an experiment.
	ActiveTrials *prometheus.GaugeVec
	// CompletedTrials counts trials by terminal status.
	CompletedTrials *prometheus.CounterVec
	// BestValue holds the best final metric seen so far.
	BestValue *prometheus.GaugeVec
	// HeartbeatUpdates counts the heartbeat updates ingested.
	HeartbeatUpdates *prometheus.CounterVec
	// EarlyStopEvaluations counts the evaluations of the early stopping policy.
	EarlyStopEvaluations *prometheus.CounterVec
	// EarlyStops counts the trials the early stopping policy asked to stop.
	EarlyStops *prometheus.CounterVec
}

// NewMetrics creates the driver collectors and registers them with the supplied registerer (which may
// be nil). Collectors that are already registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Trials: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "optimize_experiment_trials_total",
			Help: "Total number of trials created for an experiment",
		}, []string{"experiment"}),
		ActiveTrials: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "optimize_experiment_active_trials_total",
			Help: "Total number of active trials present for an experiment",
		}, []string{"experiment"}),
		CompletedTrials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optimize_experiment_completed_trials_total",
			Help: "Total number of trials reaching a terminal status",
		}, []string{"experiment", "status"}),
		BestValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "optimize_experiment_best_value",
			Help: "Best final metric value of an experiment",
		}, []string{"experiment"}),
		HeartbeatUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optimize_heartbeat_updates_total",
			Help: "Total number of heartbeat updates ingested",
		}, []string{"experiment"}),
		EarlyStopEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optimize_early_stop_evaluations_total",
			Help: "Total number of early stopping policy evaluations",
		}, []string{"experiment"}),
		EarlyStops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optimize_early_stops_total",
			Help: "Total number of trials stopped by the early stopping policy",
		}, []string{"experiment"}),
	}

	if reg == nil {
		return m, nil
	}

	var err error
	if m.Trials, err = registerGauge(reg, m.Trials); err != nil {
		return nil, err
	}
	if m.ActiveTrials, err = registerGauge(reg, m.ActiveTrials); err != nil {
		return nil, err
	}
	if m.BestValue, err = registerGauge(reg, m.BestValue); err != nil {
		return nil, err
	}
	if m.CompletedTrials, err = registerCounter(reg, m.CompletedTrials); err != nil {
		return nil, err
	}
	if m.HeartbeatUpdates, err = registerCounter(reg, m.HeartbeatUpdates); err != nil {
		return nil, err
	}
	if m.EarlyStopEvaluations, err = registerCounter(reg, m.EarlyStopEvaluations); err != nil {
		return nil, err
	}
	if m.EarlyStops, err = registerCounter(reg, m.EarlyStops); err != nil {
		return nil, err
	}
	return m, nil
}

func registerGauge(reg prometheus.Registerer, c *prometheus.GaugeVec) (*prometheus.GaugeVec, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}
