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
	"encoding/json"
	"strconv"
)

// Value is a parameter value that is either a JSON number or a string.
type Value struct {
	IsString bool
	NumVal   json.Number
	StrVal   string
}

// FromInt64 returns the supplied value as a Value
func FromInt64(val int64) Value {
	return Value{NumVal: json.Number(strconv.FormatInt(val, 10))}
}

// FromFloat64 returns the supplied value as a Value
func FromFloat64(val float64) Value {
	return Value{NumVal: json.Number(strconv.FormatFloat(val, 'g', -1, 64))}
}

// FromString returns the supplied value as a Value
func FromString(val string) Value {
	return Value{StrVal: val, IsString: true}
}

// String coerces the value to a string.
func (v Value) String() string {
	if v.IsString {
		return v.StrVal
	}
	return v.NumVal.String()
}

// Int64Value coerces the value to an int64.
func (v Value) Int64Value() int64 {
	if v.IsString {
		i, _ := strconv.ParseInt(v.StrVal, 10, 64)
		return i
	}
	if i, err := v.NumVal.Int64(); err == nil {
		return i
	}
	f, _ := v.NumVal.Float64()
	return int64(f)
}

// Float64Value coerces the value to a float64.
func (v Value) Float64Value() float64 {
	if v.IsString {
		f, _ := strconv.ParseFloat(v.StrVal, 64)
		return f
	}
	f, _ := v.NumVal.Float64()
	return f
}

// Interface returns the natural Go representation of the value: a string, an
// int64 for whole numbers or a float64.
func (v Value) Interface() interface{} {
	if v.IsString {
		return v.StrVal
	}
	if i, err := v.NumVal.Int64(); err == nil {
		return i
	}
	f, _ := v.NumVal.Float64()
	return f
}

// MarshalJSON writes the value with the appropriate type.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsString {
		return json.Marshal(v.StrVal)
	}
	return json.Marshal(v.NumVal)
}

// UnmarshalJSON reads the value from either a string or number.
func (v *Value) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		v.IsString = true
		return json.Unmarshal(b, &v.StrVal)
	}
	v.IsString = false
	return json.Unmarshal(b, &v.NumVal)
}
