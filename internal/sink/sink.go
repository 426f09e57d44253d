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

// Package sink publishes trial results as they complete.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/thestormforge/optimize-driver/internal/trial"
	"sigs.k8s.io/yaml"
)

// Publisher receives trial summaries.
type Publisher interface {
	Publish(ctx context.Context, s trial.Summary) error
}

// Log publishes trial summaries to a logger.
type Log struct {
	Log logr.Logger
}

// Publish logs the summary.
func (l *Log) Publish(_ context.Context, s trial.Summary) error {
	kv := []interface{}{"trial", s.ID, "status", s.Status.String(), "assignments", s.AssignmentsText()}
	if s.FinalMetric != nil {
		kv = append(kv, "value", *s.FinalMetric)
	}
	if s.Error != "" {
		kv = append(kv, "error", s.Error)
	}
	l.Log.Info("Trial completed", kv...)
	return nil
}

// Format is the encoding used by the file sink.
type Format string

const (
	// JSON writes one JSON object per line
	JSON Format = "json"
	// YAML writes a YAML document per summary
	YAML Format = "yaml"
)

// File publishes trial summaries to a writer.
type File struct {
	Format Format

	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// NewFile returns a sink writing to the named file; the name "-" is standard output. When the format
// is empty it is derived from the file extension.
func NewFile(name string, format Format) (*File, error) {
	if format == "" {
		format = JSON
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			format = YAML
		}
	}
	if format != JSON && format != YAML {
		return nil, fmt.Errorf("unknown sink format %q", format)
	}

	if name == "-" {
		return &File{Format: format, w: os.Stdout}, nil
	}

	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &File{Format: format, w: f, closer: f}, nil
}

// NewWriter returns a sink writing to an existing writer.
func NewWriter(w io.Writer, format Format) *File {
	return &File{Format: format, w: w}
}

// Publish writes the summary.
func (f *File) Publish(_ context.Context, s trial.Summary) error {
	var b []byte
	var err error
	switch f.Format {
	case YAML:
		if b, err = yaml.Marshal(s); err == nil {
			b = append([]byte("---\n"), b...)
		}
	default:
		if b, err = json.Marshal(s); err == nil {
			b = append(b, '\n')
		}
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	_, err = f.w.Write(b)
	return err
}

// Close closes the underlying file.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// Multi publishes to every publisher, returning the first error.
type Multi []Publisher

// Publish publishes the summary to each publisher.
func (m Multi) Publish(ctx context.Context, s trial.Summary) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, s); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Discard is a publisher that ignores everything.
var Discard Publisher = Multi(nil)
