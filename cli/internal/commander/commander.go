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

package commander

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thestormforge/optimize-driver/internal/config"
)

// IOStreams allows individual commands access to standard process streams (or their overrides).
type IOStreams struct {
	// In is used to access the standard input stream (or it's override)
	In io.Reader
	// Out is used to access the standard output stream (or it's override)
	Out io.Writer
	// ErrOut is used to access the standard error output stream (or it's override)
	ErrOut io.Writer
}

// OpenFile returns a read closer for the specified filename. If the filename is logically
// empty (i.e. "-"), the input stream is returned.
func (s *IOStreams) OpenFile(filename string) (io.ReadCloser, error) {
	if filename == "-" {
		return io.NopCloser(s.In), nil
	}
	return os.Open(filename)
}

// SetStreams updates the streams using the supplied command
func SetStreams(streams *IOStreams, cmd *cobra.Command) {
	streams.Out = cmd.OutOrStdout()
	streams.ErrOut = cmd.ErrOrStderr()
	streams.In = cmd.InOrStdin()
}

// StreamsPreRun is intended to be used as a pre-run function for commands when no other action is required
func StreamsPreRun(streams *IOStreams) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		SetStreams(streams, cmd)
	}
}

// SetPrinter assigns the resource printer during the pre-run of the supplied command
func SetPrinter(meta TableMeta, printer *ResourcePrinter, cmd *cobra.Command) {
	pf := newPrintFlags(meta, cmd.Annotations)
	pf.addFlags(cmd)
	AddPreRunE(cmd, func(*cobra.Command, []string) error {
		return pf.toPrinter(printer)
	})
}

// ConfigGlobals sets up persistent globals for the supplied configuration
func ConfigGlobals(cfg *config.OptimizeConfig, cmd *cobra.Command) {
	// Make sure we get the root to make these globals
	root := cmd.Root()

	root.PersistentFlags().StringVarP(&cfg.Filename, "config", "c", cfg.Filename, "path to the launch configuration `file` to use")
	_ = root.MarkPersistentFlagFilename("config", "yaml", "yml", "json")

	// Individual commands can bypass loading by supplying their own persistent pre-run
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error { return cfg.Load() }
}

// WithContextE wraps a function that accepts a context in one that accepts a command and argument slice
func WithContextE(runE func(context.Context) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error { return runE(cmd.Context()) }
}

// WithoutArgsE wraps a no-argument function in one that accepts a command and argument slice
func WithoutArgsE(runE func() error) func(*cobra.Command, []string) error {
	return func(*cobra.Command, []string) error { return runE() }
}

// AddPreRunE adds an error returning pre-run function to the supplied command, existing pre-run actions will run AFTER
// the supplied function, and only if the supplied pre-run function does not return an error
func AddPreRunE(cmd *cobra.Command, preRunE func(*cobra.Command, []string) error) {
	if cmd.PreRunE == nil && cmd.PreRun == nil {
		cmd.PreRunE = preRunE
		return
	}

	oldPreRunE, oldPreRun := cmd.PreRunE, cmd.PreRun
	cmd.PreRun = nil
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if err := preRunE(cmd, args); err != nil {
			return err
		}
		if oldPreRunE != nil {
			return oldPreRunE(cmd, args)
		}
		if oldPreRun != nil {
			oldPreRun(cmd, args)
		}
		return nil
	}
}

// SetFlagValues updates the named flag usage and completion to include possible choices.
func SetFlagValues(cmd *cobra.Command, flagName string, values ...string) {
	f := cmd.Flag(flagName)
	if f == nil {
		return
	}

	choices := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			choices = append(choices, v)
		}
	}

	f.Usage = fmt.Sprintf("%s; one of: %s", f.Usage, strings.Join(choices, "|"))
	_ = cmd.RegisterFlagCompletionFunc(flagName, func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var c []string
		for _, v := range choices {
			if strings.HasPrefix(v, toComplete) {
				c = append(c, v)
			}
		}
		return c, cobra.ShellCompDirectiveNoFileComp
	})
}

// MapErrors wraps all of the error returning functions on the supplied command (and it's sub-commands) so that
// they pass any errors through the mapping function.
func MapErrors(cmd *cobra.Command, f func(error) error) {
	wrapE := func(runE func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
		if runE == nil {
			return nil
		}
		return func(cmd *cobra.Command, args []string) error {
			return f(runE(cmd, args))
		}
	}

	cmd.PersistentPreRunE = wrapE(cmd.PersistentPreRunE)
	cmd.PreRunE = wrapE(cmd.PreRunE)
	cmd.RunE = wrapE(cmd.RunE)
	cmd.PostRunE = wrapE(cmd.PostRunE)
	cmd.PersistentPostRunE = wrapE(cmd.PersistentPostRunE)

	for _, c := range cmd.Commands() {
		MapErrors(c, f)
	}
}
