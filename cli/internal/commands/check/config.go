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
	"fmt"

	"github.com/spf13/cobra"
	"github.com/thestormforge/optimize-driver/cli/internal/commander"
	"github.com/thestormforge/optimize-driver/internal/config"
)

// ConfigOptions are the options for checking a launch configuration
type ConfigOptions struct {
	// Config is the launch configuration to check
	Config *config.OptimizeConfig
	// IOStreams are used to access the standard process streams
	commander.IOStreams
}

// NewConfigCommand creates a new command for checking the launch configuration
func NewConfigCommand(o *ConfigOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Check the configuration",
		Long:  "Check the experiment launch configuration",

		PreRun: commander.StreamsPreRun(&o.IOStreams),
		RunE:   commander.WithoutArgsE(o.checkConfig),
	}

	return cmd
}

// checkConfig validates the effective configuration
func (o *ConfigOptions) checkConfig() error {
	l := o.Config.Launch()
	if err := l.Validate(); err != nil {
		return err
	}

	space, err := l.NewSearchSpace()
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(o.Out, "Success, experiment '%s' will run %d trials over %d parameters using the %s routine.\n",
		l.Name, l.NumTrials, space.Len(), l.Routine.Type)
	return nil
}
