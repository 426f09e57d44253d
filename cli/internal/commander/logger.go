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
	"io"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogOptions configure the logger handed to the driver
type LogOptions struct {
	// Debug enables verbose logging
	Debug bool
	// JSON switches from the console encoding to JSON
	JSON bool
}

// AddFlags adds the logging flags to the supplied command
func (o *LogOptions) AddFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.Debug, "debug", o.Debug, "enable verbose logging")
	cmd.Flags().BoolVar(&o.JSON, "log-json", o.JSON, "write log messages as JSON")
}

// NewLogger returns a logger writing to the supplied stream.
func (o *LogOptions) NewLogger(w io.Writer) logr.Logger {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	ec.StacktraceKey = ""

	enc := zapcore.NewConsoleEncoder(ec)
	if o.JSON {
		ec = zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	}

	// logr verbosity 1 maps to the zap debug level
	lvl := zap.InfoLevel
	if o.Debug {
		lvl = zap.DebugLevel
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(lvl))
	return zapr.NewLogger(zap.New(core))
}
