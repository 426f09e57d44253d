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
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
	"github.com/thestormforge/optimize-driver/internal/driver"
	"github.com/thestormforge/optimize-driver/internal/trial"
)

type style int

const (
	completed style = iota
	failure
	detail
)

var prefixes = map[style]string{
	completed: "🍾  ",
	failure:   "❌  ",
	detail:    "    ▪ ",
}

// summarize writes a short human readable account of the run
func summarize(w io.Writer, r *driver.Result, err error) {
	out := termenv.NewOutput(w)
	step := func(s style, text termenv.Style) {
		_, _ = fmt.Fprintln(w, prefixes[s]+text.String())
	}

	counts := r.Counts()
	var parts []string
	for _, s := range []trial.Status{trial.Finished, trial.EarlyStopped, trial.Failed} {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[s], strings.ToLower(strings.ReplaceAll(s.String(), "_", " "))))
		}
	}
	tally := fmt.Sprintf("%d trials", len(r.Trials))
	if len(parts) > 0 {
		tally += " (" + strings.Join(parts, ", ") + ")"
	}

	if err != nil {
		step(failure, out.String(fmt.Sprintf("Experiment %s failed after %s: %v", r.Name, tally, err)).Foreground(out.Color("1")))
	} else {
		step(completed, out.String(fmt.Sprintf("Experiment %s finished with %s", r.Name, tally)).Bold())
	}

	if r.Best == nil {
		step(detail, out.String("No trial completed with a metric").Faint())
		return
	}
	b := r.Best.Summary()
	step(detail, out.String(fmt.Sprintf("Best trial %d: %s", b.ID, b.ValueText())).Foreground(out.Color("2")))
	step(detail, out.String(b.AssignmentsText()).Foreground(out.Color("241")))
}
