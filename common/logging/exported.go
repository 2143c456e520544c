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

package logging

import "context"

// SetError returns a context with its error field set.
func SetError(ctx context.Context, err error) context.Context {
	return SetField(ctx, ErrorKey, err)
}

// IsLogging reports whether the context is configured to log at level l.
//
// Logger implementations call this before formatting a message.
func IsLogging(ctx context.Context, l Level) bool {
	return l >= GetLevel(ctx)
}

// Debugf logs at Debug level through the context's Logger.
func Debugf(ctx context.Context, fmt string, args ...any) {
	Get(ctx).LogCall(Debug, 1, fmt, args)
}

// Infof logs at Info level through the context's Logger.
func Infof(ctx context.Context, fmt string, args ...any) {
	Get(ctx).LogCall(Info, 1, fmt, args)
}

// Warningf logs at Warning level through the context's Logger.
func Warningf(ctx context.Context, fmt string, args ...any) {
	Get(ctx).LogCall(Warning, 1, fmt, args)
}

// Errorf logs at Error level through the context's Logger.
func Errorf(ctx context.Context, fmt string, args ...any) {
	Get(ctx).LogCall(Error, 1, fmt, args)
}

// Logf logs at level l through the context's Logger.
func Logf(ctx context.Context, l Level, fmt string, args ...any) {
	Get(ctx).LogCall(l, 1, fmt, args)
}

// WithError is a shorthand for logging an error together with a message:
//
//	logging.WithError(err).Errorf(ctx, "failed to store %q", key)
func WithError(err error) FieldLogger {
	return FieldLogger{Fields{ErrorKey: err}}
}

// FieldLogger logs messages with an extra set of Fields attached.
type FieldLogger struct {
	Fields Fields
}

// Debugf logs at Debug level with the extra fields.
func (fl FieldLogger) Debugf(ctx context.Context, fmt string, args ...any) {
	Get(SetFields(ctx, fl.Fields)).LogCall(Debug, 1, fmt, args)
}

// Infof logs at Info level with the extra fields.
func (fl FieldLogger) Infof(ctx context.Context, fmt string, args ...any) {
	Get(SetFields(ctx, fl.Fields)).LogCall(Info, 1, fmt, args)
}

// Warningf logs at Warning level with the extra fields.
func (fl FieldLogger) Warningf(ctx context.Context, fmt string, args ...any) {
	Get(SetFields(ctx, fl.Fields)).LogCall(Warning, 1, fmt, args)
}

// Errorf logs at Error level with the extra fields.
func (fl FieldLogger) Errorf(ctx context.Context, fmt string, args ...any) {
	Get(SetFields(ctx, fl.Fields)).LogCall(Error, 1, fmt, args)
}
