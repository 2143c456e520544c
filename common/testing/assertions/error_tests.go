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

// Package assertions contains goconvey assertions for glassware errors.
package assertions

import (
	"fmt"

	"github.com/smarty/assertions"
	"google.golang.org/grpc/codes"

	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/grpc/grpcutil"
)

// ShouldErrLike compares an `error` or `string` on the left side, to an `error`
// or `string` on the right side.
//
// If the righthand side is omitted, this expects `actual` to be nil.
//
// If a singular righthand side is provided, this expects the stringified
// `actual` to contain the stringified `expected[0]` to be a substring of it.
//
// Example:
//
//	// Usage                          Equivalent To
//	So(err, ShouldErrLike, "custom")    // `err.Error()` ShouldContainSubstring "custom"
//	So(err, ShouldErrLike, io.EOF)      // `err.Error()` ShouldContainSubstring io.EOF.Error()
//	So(nilErr, ShouldErrLike)           // nilErr ShouldBeNil
//	So(nilErr, ShouldErrLike, nil)      // nilErr ShouldBeNil
//	So(nonNilErr, ShouldErrLike, "")    // nonNilErr ShouldNotBeNil
func ShouldErrLike(actual any, expected ...any) string {
	if len(expected) == 0 {
		return assertions.ShouldBeNil(actual)
	}
	if len(expected) != 1 {
		return fmt.Sprintf("ShouldErrLike requires 0 or 1 expected value, got %d", len(expected))
	}

	if expected[0] == nil {
		return assertions.ShouldBeNil(actual)
	} else if actual == nil {
		return assertions.ShouldNotBeNil(actual)
	}

	ae, ok := actual.(error)
	if !ok {
		return assertions.ShouldImplement(actual, (*error)(nil))
	}

	switch x := expected[0].(type) {
	case string:
		return assertions.ShouldContainSubstring(ae.Error(), x)
	case error:
		return assertions.ShouldContainSubstring(ae.Error(), x.Error())
	}
	return fmt.Sprintf("unexpected argument type %T, expected string or error", expected[0])
}

// ShouldPanicLike is the same as ShouldErrLike, but with the exception that it
// takes a panic'ing func() as its first argument, instead of the error itself.
func ShouldPanicLike(function any, expected ...any) (ret string) {
	f, ok := function.(func())
	if !ok {
		return fmt.Sprintf("unexpected argument type %T, expected `func()`", function)
	}
	defer func() {
		ret = ShouldErrLike(recover(), expected...)
	}()
	f()
	return ShouldErrLike(nil, expected...)
}

// ShouldHaveTag asserts that an error carries a BoolTag.
func ShouldHaveTag(actual any, expected ...any) string {
	if len(expected) != 1 {
		return "ShouldHaveTag requires exactly one errors.BoolTag"
	}
	tag, ok := expected[0].(errors.BoolTag)
	if !ok {
		return fmt.Sprintf("ShouldHaveTag requires an errors.BoolTag, got %T", expected[0])
	}
	err, ok := actual.(error)
	if !ok || err == nil {
		return fmt.Sprintf("expected a non-nil error, got %v", actual)
	}
	if !tag.In(err) {
		return fmt.Sprintf("expected error %q to carry the tag", err)
	}
	return ""
}

// ShouldHaveCode asserts that an error maps to the given gRPC code, and
// optionally that its message contains a substring.
func ShouldHaveCode(actual any, expected ...any) string {
	if len(expected) == 0 || len(expected) > 2 {
		return "Expected argument must have the form: codes.Code[, string]"
	}
	code, ok := expected[0].(codes.Code)
	if !ok {
		return fmt.Sprintf("The code must be a codes.Code, not a %T", expected[0])
	}
	err, _ := actual.(error)
	if actual != nil && err == nil {
		return "actual argument must be an error."
	}
	if got := grpcutil.Code(err); got != code {
		return fmt.Sprintf("expected code %q, not %q: %v", code, got, err)
	}
	if len(expected) == 2 {
		return ShouldErrLike(err, expected[1])
	}
	return ""
}
