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

package searchspace

import (
	"fmt"
	"strings"
)

// Assignment is the value assigned to a single parameter.
type Assignment struct {
	// The name of the parameter.
	Name string `json:"name"`
	// The value assigned to the parameter.
	Value Value `json:"value"`
}

// Assignments is an ordered list of parameter assignments.
type Assignments []Assignment

// Get returns the value assigned to the named parameter.
func (a Assignments) Get(name string) (Value, bool) {
	for i := range a {
		if a[i].Name == name {
			return a[i].Value, true
		}
	}
	return Value{}, false
}

// Int64 returns the named value as an integer, zero if it is not assigned.
func (a Assignments) Int64(name string) int64 {
	v, _ := a.Get(name)
	return v.Int64Value()
}

// Float64 returns the named value as a float, zero if it is not assigned.
func (a Assignments) Float64(name string) float64 {
	v, _ := a.Get(name)
	return v.Float64Value()
}

// String returns the named value as a string, empty if it is not assigned.
func (a Assignments) String(name string) string {
	v, _ := a.Get(name)
	return v.String()
}

// Map returns the assignments indexed by name using natural Go values.
func (a Assignments) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(a))
	for i := range a {
		m[a[i].Name] = a[i].Value.Interface()
	}
	return m
}

// Format returns the assignments as a comma separated list of name=value pairs.
func (a Assignments) Format() string {
	s := make([]string, len(a))
	for i := range a {
		s[i] = fmt.Sprintf("%s=%s", a[i].Name, a[i].Value.String())
	}
	return strings.Join(s, ", ")
}
