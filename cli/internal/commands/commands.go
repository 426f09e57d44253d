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

package commands

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
	"github.com/thestormforge/optimize-driver/cli/internal/commander"
	"github.com/thestormforge/optimize-driver/cli/internal/commands/check"
	"github.com/thestormforge/optimize-driver/cli/internal/commands/completion"
	"github.com/thestormforge/optimize-driver/cli/internal/commands/configure"
	"github.com/thestormforge/optimize-driver/cli/internal/commands/docs"
	"github.com/thestormforge/optimize-driver/cli/internal/commands/run"
	"github.com/thestormforge/optimize-driver/cli/internal/commands/version"
	"github.com/thestormforge/optimize-driver/internal/config"
	"github.com/thestormforge/optimize-driver/internal/executor"
)

// NewRootCommand creates a new top-level command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "optimize",
		Short:             "Tune hyperparameters with median early stopping",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}

	// Create a global configuration
	cfg := &config.OptimizeConfig{}
	commander.ConfigGlobals(cfg, rootCmd)

	// Experiment Commands
	rootCmd.AddCommand(run.NewCommand(&run.Options{Config: cfg}))
	rootCmd.AddCommand(check.NewCommand(&check.Options{Config: cfg}))
	rootCmd.AddCommand(configure.NewCommand(&configure.Options{Config: cfg}))

	// Administrative Commands
	rootCmd.AddCommand(completion.NewCommand(&completion.Options{}))
	rootCmd.AddCommand(version.NewCommand(&version.Options{}))
	rootCmd.AddCommand(docs.NewCommand(&docs.Options{}))

	commander.MapErrors(rootCmd, mapError)
	return rootCmd
}

// mapError intercepts errors returned by commands before they are reported.
func mapError(err error) error {
	if executor.IsUnavailable(err) {
		return fmt.Errorf("%w, try reducing the number of workers", err)
	}

	// It's really annoying to just get an "exit status was one" message.
	var e *exec.ExitError
	if errors.As(err, &e) && !e.Success() && len(e.Stderr) > 0 {
		return fmt.Errorf("%w\n%s", err, string(e.Stderr))
	}

	return err
}
