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
	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/grpc/grpcutil"
)

// Error classes. Every error produced by this package carries exactly one of
// these tags plus the matching gRPC code (see grpcutil.Code).
var (
	// ConfigurationTag marks schema errors detected by Register.
	ConfigurationTag = errors.NewBoolTag("protods: configuration error")
	// RequestValidationTag marks bad values, unknown fields and illegal
	// filters.
	RequestValidationTag = errors.NewBoolTag("protods: request validation error")
	// StateTag marks mutations of a finalized or already set QueryInfo.
	StateTag = errors.NewBoolTag("protods: state error")
	// UnsupportedOperationTag marks writes to read-only aliases.
	UnsupportedOperationTag = errors.NewBoolTag("protods: unsupported operation")
	// NotFoundTag marks messages of classes unknown to the schema.
	NotFoundTag = errors.NewBoolTag("protods: not found")
	// TypeSerializationTag marks values that cannot be put on the wire.
	TypeSerializationTag = errors.NewBoolTag("protods: type serialization error")
	// ForbiddenTag marks page sizes above the configured maximum.
	ForbiddenTag = errors.NewBoolTag("protods: forbidden")
)

var tagCodes = map[errors.TagKey]errors.TagValue{
	ConfigurationTag.Key:        grpcutil.InternalTag,
	RequestValidationTag.Key:    grpcutil.InvalidArgumentTag,
	StateTag.Key:                grpcutil.FailedPreconditionTag,
	UnsupportedOperationTag.Key: grpcutil.InvalidArgumentTag,
	NotFoundTag.Key:             grpcutil.NotFoundTag,
	TypeSerializationTag.Key:    grpcutil.InvalidArgumentTag,
	ForbiddenTag.Key:            grpcutil.PermissionDeniedTag,
}

func reason(tag errors.BoolTag, format string, args ...any) error {
	return errors.Reason(format, args...).Tag(tag, tagCodes[tag.Key]).Err()
}

// annotate wraps err unless it is already classified, in which case the
// original class and code are kept.
func annotate(tag errors.BoolTag, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	a := errors.Annotate(err, format, args...)
	if !classified(err) {
		a = a.Tag(tag, tagCodes[tag.Key])
	}
	return a.Err()
}

func classified(err error) bool {
	for k := range tagCodes {
		if v, ok := errors.TagValueIn(k, err); ok && v.(bool) {
			return true
		}
	}
	return false
}
