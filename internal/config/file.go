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

import (
	"fmt"
	"io"
	"os"

	"sigs.k8s.io/yaml"
)

// fileLoader loads the launch configuration from the configured filename
func fileLoader(cfg *OptimizeConfig) error {
	if cfg.Filename == "" {
		return nil
	}

	f := &file{}
	if err := f.read(cfg.Filename); err != nil {
		return err
	}

	cfg.data = f.data
	return nil
}

// file represents the data of a launch configuration file
type file struct {
	data Launch
}

// read will decode YAML or JSON data from the specified file into this configuration file
func (l *file) read(filename string) error {
	var b []byte
	var err error
	if filename == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(filename)
	}
	if err != nil {
		return err
	}

	if err := yaml.UnmarshalStrict(b, &l.data); err != nil {
		return fmt.Errorf("unable to read launch configuration %q: %w", filename, err)
	}
	return nil
}
