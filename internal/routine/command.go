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

package routine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/thestormforge/optimize-driver/internal/executor"
	"github.com/thestormforge/optimize-driver/internal/searchspace"
	"github.com/thestormforge/optimize-driver/internal/template"
)

// Command output prefixes recognized on standard output
const (
	metricPrefix = "METRIC"
	resultPrefix = "RESULT"
)

const (
	// maxLineSize is the longest output line interpreted, longer lines are skipped
	maxLineSize = 1 << 20
	// waitDelay bounds how long output is read after a cancelled command is killed
	waitDelay = 5 * time.Second
)

// Command runs an external program for each trial. The program receives the assignments as
// OPTIMIZE_PARAM_<NAME> environment variables (and optionally through templated arguments) and
// reports progress by writing "METRIC <step> <value>" lines and a final "RESULT <value>" line to
// standard output.
type Command struct {
	// Experiment is the experiment name made available to the templates.
	Experiment string
	// Command is the program and its arguments, each element is a template.
	Command []string
	// Env is additional environment variables.
	Env map[string]string
	// Dir is the working directory.
	Dir string
	// Engine renders the argument templates.
	Engine *template.Engine
}

// Run is the training routine.
func (c *Command) Run(ctx context.Context, params searchspace.Assignments, r executor.Reporter) (float64, error) {
	if len(c.Command) == 0 {
		return 0, errors.New("no command")
	}

	log := logr.FromContextOrDiscard(ctx)
	info, _ := executor.TrialInfoFrom(ctx)

	data := template.NewTrialData(c.Experiment, info.ID, info.Baseline, params)
	args, err := c.engine().RenderArgs(c.Command, data)
	if err != nil {
		return 0, fmt.Errorf("unable to render command: %w", err)
	}

	cmdCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, args[0], args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = c.environ(info, params)
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr
	stdout, pw := io.Pipe()
	cmd.Stdout = pw

	log.V(1).Info("Starting command", "command", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return 0, err
	}

	out := &output{reporter: r, log: log, cancel: cancel}
	scanned := make(chan struct{})
	go func() {
		defer close(scanned)
		if err := out.scan(stdout); err != nil {
			log.Error(err, "Unable to read command output")
		}
		// Keep the command from blocking on a full pipe
		_, _ = io.Copy(io.Discard, stdout)
	}()

	err = cmd.Wait()
	_ = pw.Close()
	<-scanned

	switch {
	case out.stopped:
		return out.last(), executor.ErrStopped
	case ctx.Err() != nil:
		return out.last(), ctx.Err()
	case err != nil:
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return 0, fmt.Errorf("%w: %s", err, msg)
		}
		return 0, err
	case out.result != nil:
		return *out.result, nil
	case out.lastValue != nil:
		return *out.lastValue, nil
	default:
		return 0, fmt.Errorf("command did not report a %s", strings.ToLower(resultPrefix))
	}
}

func (c *Command) engine() *template.Engine {
	if c.Engine != nil {
		return c.Engine
	}
	return template.New()
}

func (c *Command) environ(info executor.TrialInfo, params searchspace.Assignments) []string {
	env := os.Environ()
	env = append(env,
		"OPTIMIZE_EXPERIMENT="+c.Experiment,
		"OPTIMIZE_TRIAL="+strconv.Itoa(info.ID),
	)
	for _, a := range params {
		env = append(env, "OPTIMIZE_PARAM_"+envName(a.Name)+"="+a.Value.String())
	}
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	return env
}

func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

// output interprets the standard output of a command
type output struct {
	reporter  executor.Reporter
	log       logr.Logger
	cancel    context.CancelFunc
	result    *float64
	lastValue *float64
	stopped   bool
}

// scan interprets each line read until the end of the output.
func (o *output) scan(r io.Reader) error {
	br := bufio.NewReaderSize(r, maxLineSize)
	long := false
	for {
		b, err := br.ReadSlice('\n')
		switch {
		case err == bufio.ErrBufferFull:
			if !long {
				o.log.Info("Ignoring long output line", "limit", maxLineSize)
			}
			long = true
			continue
		case long:
			// the remainder of a long line
			long = false
		case len(b) > 0:
			o.line(string(b))
		}

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (o *output) line(text string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return
	}

	switch strings.ToUpper(fields[0]) {
	case metricPrefix:
		if len(fields) != 3 {
			o.log.Info("Ignoring malformed metric", "line", text)
			return
		}
		step, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			o.log.Info("Ignoring malformed metric step", "line", text)
			return
		}
		value, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			o.log.Info("Ignoring malformed metric value", "line", text)
			return
		}
		if o.stopped {
			return
		}
		if err := o.reporter.Report(value, step); err != nil {
			if errors.Is(err, executor.ErrStopped) {
				o.stopped = true
				o.cancel()
				return
			}
			o.log.Info("Metric rejected", "error", err.Error())
			return
		}
		o.lastValue = &value

	case resultPrefix:
		if len(fields) != 2 {
			o.log.Info("Ignoring malformed result", "line", text)
			return
		}
		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			o.log.Info("Ignoring malformed result value", "line", text)
			return
		}
		o.result = &value

	default:
		o.log.V(1).Info(text)
	}
}

func (o *output) last() float64 {
	if o.lastValue != nil {
		return *o.lastValue
	}
	return 0
}

// tailBuffer retains the last bytes written to it
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
