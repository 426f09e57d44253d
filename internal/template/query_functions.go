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

package template

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

var overRangeQuery = template.Must(template.New("overRange").Parse(
	`{{ .Func }}_over_time({{ .Metric }}{{ .Labels }}[{{ .Range }}])`))

// selector returns a Prometheus label selector from a list of "key=value" arguments (which may
// themselves be comma separated). The default selector matches the trial label.
func selector(data *TrialData, labelArgs ...string) (string, error) {
	var labels []string
	for _, label := range strings.Split(strings.Join(labelArgs, ","), ",") {
		if label == "" {
			continue
		}

		kvpair := strings.SplitN(label, "=", 2)
		if len(kvpair) != 2 {
			return "", fmt.Errorf("invalid label for query, expected key=value, got: %s", label)
		}

		labels = append(labels, fmt.Sprintf("%s=%q", kvpair[0], kvpair[1]))
	}

	if len(labels) == 0 {
		labels = append(labels, fmt.Sprintf("trial=\"%d\"", data.Trial))
	}

	return fmt.Sprintf("{%s}", strings.Join(labels, ",")), nil
}

// overRange returns a "<func>_over_time" query of the metric over the life of the trial
func overRange(fn string, data *TrialData, metric string, labelArgs ...string) (string, error) {
	labels, err := selector(data, labelArgs...)
	if err != nil {
		return "", err
	}

	input := struct {
		Func   string
		Metric string
		Labels string
		Range  string
	}{fn, metric, labels, data.Range}

	var output bytes.Buffer
	if err := overRangeQuery.Execute(&output, input); err != nil {
		return "", err
	}
	return output.String(), nil
}

// scalarOf wraps a query so it produces a scalar result
func scalarOf(query string) string {
	return fmt.Sprintf("scalar(%s)", query)
}
