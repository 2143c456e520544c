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

package errors

import (
	"fmt"
	"strings"
)

// MultiError is a simple `error` implementation which represents multiple
// `error` objects in one.
type MultiError []error

// MaybeAdd appends err if it is not nil.
func (m *MultiError) MaybeAdd(err error) {
	if err != nil {
		*m = append(*m, err)
	}
}

// AsError returns nil if m has no non-nil errors, and m otherwise.
func (m MultiError) AsError() error {
	if m.First() == nil {
		return nil
	}
	return m
}

// First returns the first non-nil error.
func (m MultiError) First() error {
	for _, e := range m {
		if e != nil {
			return e
		}
	}
	return nil
}

// Summary returns the first non-nil error and the number of non-nil errors.
func (m MultiError) Summary() (n int, first error) {
	for _, e := range m {
		if e != nil {
			if n == 0 {
				first = e
			}
			n++
		}
	}
	return
}

func (m MultiError) Error() string {
	n, first := m.Summary()
	switch n {
	case 0:
		return "(0 errors)"
	case 1:
		return first.Error()
	case 2:
		return first.Error() + " (and 1 other error)"
	}
	return fmt.Sprintf("%s (and %d other errors)", first, n-1)
}

// Unwrap supports errors.Is and errors.As over every contained error.
func (m MultiError) Unwrap() []error {
	ret := make([]error, 0, len(m))
	for _, e := range m {
		if e != nil {
			ret = append(ret, e)
		}
	}
	return ret
}

// Strings renders every non-nil error on its own line.
func (m MultiError) Strings() string {
	lines := make([]string, 0, len(m))
	for _, e := range m {
		if e != nil {
			lines = append(lines, e.Error())
		}
	}
	return strings.Join(lines, "\n")
}

// SingleError provides a simple way to uwrap a MultiError if you know that it
// could only ever contain one element.
//
// If err is a MultiError, return its first element. Otherwise, return err.
func SingleError(err error) error {
	if me, ok := err.(MultiError); ok {
		return me.First()
	}
	return err
}
