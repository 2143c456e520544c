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

package endpoints

import (
	"context"
	"encoding/json"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"go.glassware.dev/glassware/common/logging"
	"go.glassware.dev/glassware/grpc/grpcutil"
)

const contentType = "application/json; charset=utf-8"

// ErrorBody is the JSON rendering of a failed call.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed call.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// WriteError answers with the HTTP status of err's gRPC code. Details of
// internal errors are logged, not sent.
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	code := grpcutil.Code(err)
	status := grpcutil.CodeStatus(code)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logging.WithError(err).Errorf(ctx, "request failed with %s", code)
		msg = http.StatusText(status)
		if code == codes.Unknown {
			code = codes.Internal
		}
	}
	body, jerr := json.Marshal(ErrorBody{ErrorDetail{
		Code:    status,
		Status:  grpcutil.CodeName(code),
		Message: msg,
	}})
	if jerr != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.WithError(err).Warningf(ctx, "writing the error response")
	}
}

// WriteMessage answers with m encoded as JSON.
func WriteMessage(ctx context.Context, w http.ResponseWriter, status int, m proto.Message) {
	body, err := protojson.Marshal(m)
	if err != nil {
		WriteError(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.WithError(err).Warningf(ctx, "writing the response")
	}
}
