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

// Package errors is an error annotation library.
//
// Errors are wrapped with human-readable reasons and tagged with typed values
// (error categories, status codes) that callers recover with TagValueIn or a
// tag's In method without string matching:
//
//	return errors.Annotate(err, "loading %q", key).Tag(NotFoundTag).Err()
//
// Annotated errors unwrap to their cause, so the standard errors.Is and
// errors.As keep working.
package errors

import (
	"errors"
	"fmt"
)

// New returns a new error with msg, carrying the supplied tags.
func New(msg string, tags ...TagValueGenerator) error {
	if len(tags) == 0 {
		return errors.New(msg)
	}
	return Reason("%s", msg).Tag(tags...).Err()
}

// Is is errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }

// As is errors.As.
func As(err error, target any) bool { return errors.As(err, target) }

// Unwrap is errors.Unwrap.
func Unwrap(err error) error { return errors.Unwrap(err) }

// Annotator is a builder for annotating errors. Obtain one with Annotate or
// Reason.
type Annotator struct {
	inner  error
	reason string
	tags   map[TagKey]any
}

// Annotate wraps err with a reason. It returns nil if err is nil, and every
// method on a nil Annotator is a no-op, so the idiom
//
//	return errors.Annotate(err, "...").Err()
//
// is safe even when err is nil.
func Annotate(err error, reason string, args ...any) *Annotator {
	if err == nil {
		return nil
	}
	return &Annotator{inner: err, reason: fmt.Sprintf(reason, args...)}
}

// Reason builds a new error with a formatted reason and no cause.
func Reason(reason string, args ...any) *Annotator {
	return &Annotator{reason: fmt.Sprintf(reason, args...)}
}

// Tag adds tag values to the error.
func (a *Annotator) Tag(tags ...TagValueGenerator) *Annotator {
	if a == nil {
		return a
	}
	for _, t := range tags {
		v := t.GenerateErrorTagValue()
		if a.tags == nil {
			a.tags = make(map[TagKey]any, len(tags))
		}
		a.tags[v.Key] = v.Value
	}
	return a
}

// Err returns the finished error, or nil if the Annotator is nil.
func (a *Annotator) Err() error {
	if a == nil {
		return nil
	}
	return &annotatedError{inner: a.inner, reason: a.reason, tags: a.tags}
}

type annotatedError struct {
	inner  error
	reason string
	tags   map[TagKey]any
}

func (e *annotatedError) Error() string {
	switch {
	case e.inner == nil:
		return e.reason
	case e.reason == "":
		return e.inner.Error()
	default:
		return e.reason + ": " + e.inner.Error()
	}
}

func (e *annotatedError) Unwrap() error { return e.inner }
