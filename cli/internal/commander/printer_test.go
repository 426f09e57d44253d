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
	"bytes"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type pointMeta struct{}

func (pointMeta) ExtractList(obj interface{}) ([]interface{}, error) {
	var l []interface{}
	for _, p := range obj.([]point) {
		l = append(l, p)
	}
	return l, nil
}

func (pointMeta) Columns(interface{}, string) []string { return []string{"name", "value"} }

func (pointMeta) ExtractValue(obj interface{}, column string) (string, error) {
	p := obj.(point)
	switch column {
	case "name":
		return p.Name, nil
	case "value":
		return fmt.Sprint(p.Value), nil
	}
	return "", fmt.Errorf("unable to extract: %s", column)
}

func (pointMeta) Header(_ string, column string) string { return column }

func TestPrinter(t *testing.T) {
	points := []point{{Name: "a", Value: 1}, {Name: "bb", Value: 22}}

	testCases := []struct {
		desc        string
		annotations map[string]string
		args        []string
		expected    string
		errMsg      string
	}{
		{
			desc:     "table",
			expected: "name   value   \na      1       \nbb     22      \n",
		},
		{
			desc:     "no headers",
			args:     []string{"--no-headers"},
			expected: "a    1    \nbb   22   \n",
		},
		{
			desc:     "name",
			args:     []string{"-o", "name"},
			expected: "a\nbb\n",
		},
		{
			desc:     "csv",
			args:     []string{"-o", "csv"},
			expected: "name,value\na,1\nbb,22\n",
		},
		{
			desc:     "yaml",
			args:     []string{"-o", "yaml"},
			expected: "- name: a\n  value: 1\n- name: bb\n  value: 22\n",
		},
		{
			desc:        "restricted",
			annotations: map[string]string{PrinterAllowedFormats: "json,yaml", PrinterOutputFormat: "yaml"},
			args:        []string{"-o", "csv"},
			errMsg:      "no printer for csv, allowed formats are: json,yaml",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			var printer ResourcePrinter
			var out bytes.Buffer
			cmd := &cobra.Command{
				Use:         "test",
				Annotations: tc.annotations,
				RunE: func(cmd *cobra.Command, _ []string) error {
					return printer.PrintObj(points, cmd.OutOrStdout())
				},
				SilenceUsage:  true,
				SilenceErrors: true,
			}
			SetPrinter(pointMeta{}, &printer, cmd)
			cmd.SetOut(&out)
			cmd.SetArgs(tc.args)

			err := cmd.Execute()
			if tc.errMsg != "" {
				assert.EqualError(t, err, tc.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, out.String())
		})
	}
}
