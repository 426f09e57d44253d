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
	"fmt"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
)

// FuncMap returns the functions used for template evaluation
func FuncMap() template.FuncMap {
	f := sprig.TxtFuncMap()
	delete(f, "env")
	delete(f, "expandenv")

	extra := template.FuncMap{
		"duration":  duration,
		"percent":   percent,
		"selector":  selector,
		"overRange": overRange,
		"scalarOf":  scalarOf,
		"GB":        gb,
		"MB":        mb,
		"KB":        kb,
		"GiB":       gib,
		"MiB":       mib,
		"KiB":       kib,
	}

	for k, v := range extra {
		f[k] = v
	}

	return f
}

// duration returns a floating point number representing the number of seconds between two times
func duration(start, completion time.Time) float64 {
	if start.Before(completion) {
		return completion.Sub(start).Seconds()
	}
	return 0
}

// percent returns a percentage of a value using a (0-100) percentage
func percent(value interface{}, percent interface{}) (string, error) {
	v, err := toFloat(value)
	if err != nil {
		return "", err
	}
	p, err := toFloat(percent)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", int64(v*(p/100.0))), nil
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
