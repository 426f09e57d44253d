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

import "os"

// Environment variables recognized as overrides
const (
	EnvName              = "OPTIMIZE_NAME"
	EnvOptimizer         = "OPTIMIZE_OPTIMIZER"
	EnvDirection         = "OPTIMIZE_DIRECTION"
	EnvNumTrials         = "OPTIMIZE_NUM_TRIALS"
	EnvHeartbeatInterval = "OPTIMIZE_HB_INTERVAL"
	EnvEarlyStopInterval = "OPTIMIZE_ES_INTERVAL"
	EnvEarlyStopMin      = "OPTIMIZE_ES_MIN"
	EnvWorkers           = "OPTIMIZE_WORKERS"
	EnvSeed              = "OPTIMIZE_SEED"
	EnvLaunchRate        = "OPTIMIZE_LAUNCH_RATE"
	EnvRoutine           = "OPTIMIZE_ROUTINE"
	EnvSinkFile          = "OPTIMIZE_SINK_FILE"
)

// envLoader adds environment variable overrides to the configuration; explicit overrides take precedence
func envLoader(cfg *OptimizeConfig) error {
	o := &cfg.Overrides
	defaultString(&o.Name, os.Getenv(EnvName))
	defaultString(&o.Optimizer, os.Getenv(EnvOptimizer))
	defaultString(&o.Direction, os.Getenv(EnvDirection))
	defaultString(&o.NumTrials, os.Getenv(EnvNumTrials))
	defaultString(&o.HeartbeatInterval, os.Getenv(EnvHeartbeatInterval))
	defaultString(&o.EarlyStopInterval, os.Getenv(EnvEarlyStopInterval))
	defaultString(&o.EarlyStopMin, os.Getenv(EnvEarlyStopMin))
	defaultString(&o.Workers, os.Getenv(EnvWorkers))
	defaultString(&o.Seed, os.Getenv(EnvSeed))
	defaultString(&o.LaunchRate, os.Getenv(EnvLaunchRate))
	defaultString(&o.RoutineType, os.Getenv(EnvRoutine))
	defaultString(&o.SinkFile, os.Getenv(EnvSinkFile))
	return nil
}
