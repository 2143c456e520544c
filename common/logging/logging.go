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

// Package logging defines the context-carried logging facade used throughout
// glassware.
//
// A Logger is installed into a context.Context with SetFactory (or Set) and
// retrieved with Get. Code that wants to log uses the package-level helpers:
//
//	logging.Infof(ctx, "stored %d items", n)
//
// The context also carries the minimum Level and a set of Fields that
// backends render alongside each message.
package logging

import "context"

// Logger is a logging backend.
type Logger interface {
	// Debugf logs a formatted message at Debug level.
	Debugf(format string, args ...any)
	// Infof logs a formatted message at Info level.
	Infof(format string, args ...any)
	// Warningf logs a formatted message at Warning level.
	Warningf(format string, args ...any)
	// Errorf logs a formatted message at Error level.
	Errorf(format string, args ...any)

	// LogCall is a generic logging function. calldepth is the number of stack
	// frames between the caller of the public helper and this method.
	LogCall(l Level, calldepth int, format string, args []any)
}

// Factory is a function that returns a Logger bound to a context.
type Factory func(context.Context) Logger

type key int

const (
	loggerKey key = iota
	levelKey
	fieldsKey
)

// SetFactory sets the Logger factory for this context.
//
// The factory is invoked each time Get is called.
func SetFactory(ctx context.Context, f Factory) context.Context {
	return context.WithValue(ctx, loggerKey, f)
}

// Set sets the logger for this context.
func Set(ctx context.Context, l Logger) context.Context {
	return SetFactory(ctx, func(context.Context) Logger { return l })
}

// GetFactory returns the currently-configured logging factory (or nil).
func GetFactory(ctx context.Context) Factory {
	if f, ok := ctx.Value(loggerKey).(Factory); ok {
		return f
	}
	return nil
}

// Get the current Logger, or a logger that ignores all messages if none
// is defined.
func Get(ctx context.Context) Logger {
	if f := GetFactory(ctx); f != nil {
		if l := f(ctx); l != nil {
			return l
		}
	}
	return Null
}
