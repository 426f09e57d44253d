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

package version

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thestormforge/optimize-driver/cli/internal/commander"
	"github.com/thestormforge/optimize-driver/internal/version"
	"sigs.k8s.io/yaml"
)

// Options is the configuration for reporting the version
type Options struct {
	// IOStreams are used to access the standard process streams
	commander.IOStreams

	// Output is the format to output data in
	Output string
}

// NewCommand creates a new command for reporting the version
func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Long:  "Print the version information of the experiment driver",

		PreRun: commander.StreamsPreRun(&o.IOStreams),
		RunE:   func(cmd *cobra.Command, _ []string) error { return o.version(cmd.Root().Name()) },
	}

	cmd.Flags().StringVarP(&o.Output, "output", "o", "", "output `format`")
	commander.SetFlagValues(cmd, "output", "json", "yaml")

	return cmd
}

func (o *Options) version(name string) error {
	info := version.GetInfo()

	switch strings.ToLower(o.Output) {
	case "":
		_, err := fmt.Fprintf(o.Out, "%s version %s\n", name, info.String())
		return err
	case "json":
		b, err := json.MarshalIndent(info, "", "    ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(o.Out, string(b))
		return err
	case "yaml":
		b, err := yaml.Marshal(info)
		if err != nil {
			return err
		}
		_, err = o.Out.Write(b)
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", o.Output)
	}
}
