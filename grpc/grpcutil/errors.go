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

// Package grpcutil attaches gRPC status codes to errors and maps them onto
// HTTP statuses for the JSON API surface.
package grpcutil

import (
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.glassware.dev/glassware/common/errors"
)

type codeTag struct{ Key errors.TagKey }

// With returns a tag value carrying code.
func (t codeTag) With(code codes.Code) errors.TagValue {
	return errors.TagValue{Key: t.Key, Value: code}
}

// In returns the code tagged on err, if any.
func (t codeTag) In(err error) (codes.Code, bool) {
	v, ok := errors.TagValueIn(t.Key, err)
	if !ok {
		return codes.OK, false
	}
	return v.(codes.Code), true
}

// Tag associates a gRPC code with an error. Its values are codes.Code.
var Tag = codeTag{errors.NewTagKey("gRPC Code")}

// Tags for the codes the API produces.
var (
	InvalidArgumentTag    = Tag.With(codes.InvalidArgument)
	NotFoundTag           = Tag.With(codes.NotFound)
	PermissionDeniedTag   = Tag.With(codes.PermissionDenied)
	UnauthenticatedTag    = Tag.With(codes.Unauthenticated)
	FailedPreconditionTag = Tag.With(codes.FailedPrecondition)
	UnimplementedTag      = Tag.With(codes.Unimplemented)
	InternalTag           = Tag.With(codes.Internal)
)

type codeInfo struct {
	status int    // HTTP status
	name   string // as in Google API error bodies
}

// See https://cloud.google.com/apis/design/errors.
var codeInfos = map[codes.Code]codeInfo{
	codes.OK:                 {http.StatusOK, "OK"},
	codes.Canceled:           {499, "CANCELLED"},
	codes.Unknown:            {http.StatusInternalServerError, "UNKNOWN"},
	codes.InvalidArgument:    {http.StatusBadRequest, "INVALID_ARGUMENT"},
	codes.DeadlineExceeded:   {http.StatusGatewayTimeout, "DEADLINE_EXCEEDED"},
	codes.NotFound:           {http.StatusNotFound, "NOT_FOUND"},
	codes.AlreadyExists:      {http.StatusConflict, "ALREADY_EXISTS"},
	codes.PermissionDenied:   {http.StatusForbidden, "PERMISSION_DENIED"},
	codes.ResourceExhausted:  {http.StatusTooManyRequests, "RESOURCE_EXHAUSTED"},
	codes.FailedPrecondition: {http.StatusBadRequest, "FAILED_PRECONDITION"},
	codes.Aborted:            {http.StatusConflict, "ABORTED"},
	codes.OutOfRange:         {http.StatusBadRequest, "OUT_OF_RANGE"},
	codes.Unimplemented:      {http.StatusNotImplemented, "UNIMPLEMENTED"},
	codes.Internal:           {http.StatusInternalServerError, "INTERNAL"},
	codes.Unavailable:        {http.StatusServiceUnavailable, "UNAVAILABLE"},
	codes.DataLoss:           {http.StatusGone, "DATA_LOSS"},
	codes.Unauthenticated:    {http.StatusUnauthorized, "UNAUTHENTICATED"},
}

// CodeStatus is the HTTP status of code, 500 for unknown codes.
func CodeStatus(code codes.Code) int {
	if ci, ok := codeInfos[code]; ok {
		return ci.status
	}
	return http.StatusInternalServerError
}

// CodeName is the upper snake case name of code, e.g. "NOT_FOUND".
func CodeName(code codes.Code) string {
	if ci, ok := codeInfos[code]; ok {
		return ci.name
	}
	return "UNKNOWN"
}

// Code returns the gRPC code of err.
//
// A tagged code wins. A MultiError has the code its errors agree on, or
// codes.Unknown if they disagree. Otherwise the code of a wrapped gRPC status
// is used.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if code, ok := Tag.In(err); ok {
		return code
	}
	if merr, ok := err.(errors.MultiError); ok {
		agreed := codes.OK
		for _, e := range merr {
			if e == nil {
				continue
			}
			switch c := Code(e); {
			case agreed == codes.OK:
				agreed = c
			case c != agreed:
				return codes.Unknown
			}
		}
		return agreed
	}
	var se interface{ GRPCStatus() *status.Status }
	if errors.As(err, &se) {
		return se.GRPCStatus().Code()
	}
	return codes.Unknown
}
