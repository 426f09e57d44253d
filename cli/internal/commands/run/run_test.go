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

package run

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thestormforge/optimize-driver/internal/config"
)

const launchConfig = `name: convnet
numTrials: 6
hbInterval: 5ms
esMin: 100
workers: 2
seed: 7
searchSpace:
- name: kernel
  type: int
  bounds:
    min: 2
    max: 8
  baseline: 5
- name: optimizer
  type: categorical
  values: [adam, sgd]
  baseline: adam
routine:
  steps: 3
  stepInterval: 1ms
sink:
  quiet: true
`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	filename := filepath.Join(t.TempDir(), "convnet.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(launchConfig), 0644))

	cfg := &config.OptimizeConfig{Filename: filename}
	cmd := NewCommand(&Options{Config: cfg})
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error { return cfg.Load() }

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRun(t *testing.T) {
	testCases := []struct {
		desc   string
		args   []string
		trials int
	}{
		{
			desc:   "defaults",
			trials: 6,
		},
		{
			desc:   "overrides",
			args:   []string{"--num-trials", "3", "--direction", "min"},
			trials: 3,
		},
		{
			desc:   "metrics",
			args:   []string{"--metrics-addr", "127.0.0.1:0"},
			trials: 6,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			out, errOut, err := execute(t, append(tc.args, "-o", "json")...)
			require.NoError(t, err)

			var rpt struct {
				Name   string `json:"name"`
				State  string `json:"state"`
				Trials []struct {
					ID       int    `json:"id"`
					Status   string `json:"status"`
					Baseline bool   `json:"baseline"`
				} `json:"trials"`
				Best *struct {
					ID int `json:"id"`
				} `json:"best"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &rpt))

			assert.Equal(t, "convnet", rpt.Name)
			assert.Equal(t, "DONE", rpt.State)
			if assert.Len(t, rpt.Trials, tc.trials) {
				assert.True(t, rpt.Trials[0].Baseline)
				for _, tr := range rpt.Trials {
					assert.Equal(t, "FINISHED", tr.Status)
				}
			}
			assert.NotNil(t, rpt.Best)
			assert.Contains(t, errOut, "Experiment convnet finished")
		})
	}
}

func TestRun_Table(t *testing.T) {
	out, _, err := execute(t, "--num-trials", "2", "--skip-baseline")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ID", "STATUS", "VALUE", "ASSIGNMENTS"}, strings.Fields(lines[0]))
	assert.Equal(t, "1", strings.Fields(lines[1])[0])
	assert.Equal(t, "FINISHED", strings.Fields(lines[1])[1])
}

func TestRun_Invalid(t *testing.T) {
	_, _, err := execute(t, "--num-trials", "0")
	assert.Error(t, err)

	_, _, err = execute(t, "--optimizer", "gridsearch")
	assert.Error(t, err)
}
