// Copyright 2026 The LUCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package protods

import (
	"sort"
)

// EnumValue is the symbolic name of an enum value.
type EnumValue string

// EnumType is a named, closed set of symbolic values with wire numbers.
type EnumType struct {
	Name string

	names   []string // sorted by number
	numbers map[string]int32
	byNum   map[int32]string
}

// NewEnumType declares an enum type. Numbers need not start at zero but must
// be unique.
func NewEnumType(name string, values map[string]int32) *EnumType {
	e := &EnumType{
		Name:    name,
		numbers: make(map[string]int32, len(values)),
		byNum:   make(map[int32]string, len(values)),
	}
	for n, v := range values {
		e.numbers[n] = v
		e.byNum[v] = n
		e.names = append(e.names, n)
	}
	sort.Slice(e.names, func(i, j int) bool {
		return e.numbers[e.names[i]] < e.numbers[e.names[j]]
	})
	return e
}

// Names returns the symbolic names ordered by number.
func (e *EnumType) Names() []string {
	return append([]string(nil), e.names...)
}

// Number returns the wire number of name.
func (e *EnumType) Number(name EnumValue) (int32, bool) {
	n, ok := e.numbers[string(name)]
	return n, ok
}

// Lookup returns the symbolic name of a wire number.
func (e *EnumType) Lookup(num int32) (EnumValue, bool) {
	n, ok := e.byNum[num]
	return EnumValue(n), ok
}

func (e *EnumType) validate() error {
	if !isIdent(e.Name) {
		return reason(ConfigurationTag, "enum name %q is not an identifier", e.Name)
	}
	if len(e.names) == 0 {
		return reason(ConfigurationTag, "enum %s has no values", e.Name)
	}
	if len(e.byNum) != len(e.numbers) {
		return reason(ConfigurationTag, "enum %s reuses a number", e.Name)
	}
	for _, n := range e.names {
		if !isIdent(n) {
			return reason(ConfigurationTag, "enum %s: value %q is not an identifier", e.Name, n)
		}
	}
	return nil
}
