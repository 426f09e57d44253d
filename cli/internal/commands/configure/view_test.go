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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thestormforge/optimize-driver/internal/config"
)

func TestView(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "launch.yaml")
	require.NoError(t, os.WriteFile(filename, []byte("name: convnet\nnumTrials: 4\n"), 0644))

	testCases := []struct {
		desc     string
		args     []string
		contains []string
	}{
		{
			desc:     "effective yaml",
			contains: []string{"name: convnet", "numTrials: 4", "optimizer: randomsearch", "direction: max", "esMin: 10"},
		},
		{
			desc:     "json",
			args:     []string{"-o", "json"},
			contains: []string{`"name": "convnet"`, `"hbInterval": "1s"`},
		},
		{
			desc:     "raw",
			args:     []string{"--raw"},
			contains: []string{"name: convnet\nnumTrials: 4\n"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := &config.OptimizeConfig{Filename: filename}
			require.NoError(t, cfg.Load())

			var out bytes.Buffer
			cmd := NewViewCommand(&ViewOptions{Config: cfg})
			cmd.SetOut(&out)
			cmd.SetArgs(tc.args)
			require.NoError(t, cmd.Execute())

			for _, s := range tc.contains {
				assert.Contains(t, out.String(), s)
			}
		})
	}
}
