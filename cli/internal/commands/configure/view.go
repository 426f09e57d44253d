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

package configure

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/thestormforge/optimize-driver/cli/internal/commander"
	"github.com/thestormforge/optimize-driver/internal/config"
)

// ViewOptions are the options for viewing a configuration file
type ViewOptions struct {
	// Config is the launch configuration to view
	Config *config.OptimizeConfig
	// IOStreams are used to access the standard process streams
	commander.IOStreams
	// Printer renders the configuration
	Printer commander.ResourcePrinter

	// FileOnly causes view to just dump the configuration file to out
	FileOnly bool
}

// NewViewCommand creates a new command for viewing the configuration
func NewViewCommand(o *ViewOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "View the configuration",
		Long:  "View the effective launch configuration after defaults, environment variables and flags are applied",

		Annotations: map[string]string{
			commander.PrinterAllowedFormats: "json,yaml",
			commander.PrinterOutputFormat:   "yaml",
		},

		PreRun: commander.StreamsPreRun(&o.IOStreams),
		RunE:   commander.WithoutArgsE(o.view),
	}

	cmd.Flags().BoolVar(&o.FileOnly, "raw", false, "display the raw configuration file without merging")

	commander.SetPrinter(nil, &o.Printer, cmd)

	return cmd
}

func (o *ViewOptions) view() error {
	if o.FileOnly && o.Config.Filename != "" {
		f, err := o.OpenFile(o.Config.Filename)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(o.Out, f)
		return err
	}

	return o.Printer.PrintObj(o.Config, o.Out)
}
