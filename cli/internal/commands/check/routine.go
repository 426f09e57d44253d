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

package check

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"

	prom "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/spf13/cobra"
	"github.com/thestormforge/optimize-driver/cli/internal/commander"
	"github.com/thestormforge/optimize-driver/internal/config"
	"github.com/thestormforge/optimize-driver/internal/version"
)

// RoutineOptions are the options for checking the training routine
type RoutineOptions struct {
	// Config is the launch configuration containing the routine
	Config *config.OptimizeConfig
	// IOStreams are used to access the standard process streams
	commander.IOStreams
}

// NewRoutineCommand creates a new command for checking the training routine
func NewRoutineCommand(o *RoutineOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routine",
		Short: "Check the training routine",
		Long:  "Check that the configured training routine can be started",

		PreRun: commander.StreamsPreRun(&o.IOStreams),
		RunE:   commander.WithContextE(o.checkRoutine),
	}

	return cmd
}

func (o *RoutineOptions) checkRoutine(ctx context.Context) error {
	r := &o.Config.Launch().Routine

	switch r.Type {
	case config.RoutineSynthetic:
		_, _ = fmt.Fprintf(o.Out, "Success, the synthetic routine runs %d steps.\n", r.Steps)

	case config.RoutineCommand:
		if len(r.Command) == 0 {
			return fmt.Errorf("no command configured")
		}
		path, err := exec.LookPath(r.Command[0])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(o.Out, "Success, found command '%s'.\n", path)

	case config.RoutinePrometheus:
		c, err := prom.NewClient(prom.Config{
			Address:      r.Address,
			RoundTripper: version.UserAgent("", "check", http.DefaultTransport),
		})
		if err != nil {
			return err
		}
		info, err := promv1.NewAPI(c).Buildinfo(ctx)
		if err != nil {
			return fmt.Errorf("unable to reach Prometheus at %s: %w", r.Address, err)
		}
		_, _ = fmt.Fprintf(o.Out, "Success, found Prometheus %s at %s.\n", info.Version, r.Address)

	default:
		return fmt.Errorf("unknown routine type %q", r.Type)
	}

	return nil
}
