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

// Package version exposes the build version of the driver. During a build some or all of the
// variables may be overridden using the Go linker, e.g.
// `-ldflags "-X github.com/thestormforge/optimize-driver/internal/version.Version=v1.0.0"`.
package version

import (
	"runtime"
	"strings"
)

const defaultVersion = "v0.0.0-source"

var (
	// Version is a "v" prefixed Semver
	Version = defaultVersion
	// BuildMetadata is the Semver build metadata stored independent of the version string
	BuildMetadata = ""
	// GitCommit is a Git commit identifier
	GitCommit = ""
)

// Product is the default product name used in the user agent.
const Product = "OptimizeDriver"

// Info represents available version information
type Info struct {
	Version       string `json:"version"`
	BuildMetadata string `json:"build,omitempty"`
	GitCommit     string `json:"gitCommit,omitempty"`
	GoVersion     string `json:"goVersion,omitempty"`
	Platform      string `json:"platform,omitempty"`
}

// String returns the full Semver of the version information; build metadata is only included for
// pre-release versions.
func (i *Info) String() string {
	if i.Version == "" {
		return defaultVersion
	}
	if strings.Contains(i.Version, "-") && i.BuildMetadata != "" {
		return i.Version + "+" + i.BuildMetadata
	}
	return i.Version
}

// GetInfo returns the full version information
func GetInfo() *Info {
	return &Info{
		Version:       Version,
		BuildMetadata: BuildMetadata,
		GitCommit:     GitCommit,
		GoVersion:     runtime.Version(),
		Platform:      runtime.GOOS + "/" + runtime.GOARCH,
	}
}
