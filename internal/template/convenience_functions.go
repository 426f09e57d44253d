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
	"math"
)

// Unit conversions for byte valued queries, e.g. `{{ "container_memory_usage_bytes" | MiB }}`
var (
	gb  = divideBy(math.Pow(1000, 3))
	mb  = divideBy(math.Pow(1000, 2))
	kb  = divideBy(1000)
	gib = divideBy(math.Pow(1024, 3))
	mib = divideBy(math.Pow(1024, 2))
	kib = divideBy(1024)
)

func divideBy(unit float64) func(string) string {
	return func(query string) string {
		return fmt.Sprintf("%s/%.f", query, unit)
	}
}
