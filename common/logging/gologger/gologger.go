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

// Package gologger is a logging.Logger backed by github.com/op/go-logging.
package gologger

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	gol "github.com/op/go-logging"

	"go.glassware.dev/glassware/common/logging"
)

// StandardFormat first prints process ID, time, filename, logging level
// and sequence number, all colored. Then the message.
const StandardFormat = `%{color} [P%{pid} %{time:15:04:05.000} %{shortfile} %{level:.4s} %{id:03x}]` +
	`%{color:reset} %{message}`

// PlainFormat is StandardFormat without terminal colors.
const PlainFormat = `[P%{pid} %{time:15:04:05.000} %{shortfile} %{level:.4s} %{id:03x}] %{message}`

// LoggerConfig owns a go-logging Logger configured with a format and an
// output writer.
type LoggerConfig struct {
	Format string    // see go-logging documentation for the format syntax
	Out    io.Writer // where to write the log to

	once sync.Once
	l    *gol.Logger
}

// StdConfig writes colored lines to stderr.
var StdConfig = LoggerConfig{Format: StandardFormat, Out: os.Stderr}

// NewLogger returns a logging.Logger bound to ctx. The context's level and
// fields are honored per message.
func (lc *LoggerConfig) NewLogger(ctx context.Context) logging.Logger {
	lc.once.Do(func() {
		lc.l = lc.newGoLogger()
	})
	return &loggerImpl{ctx: ctx, l: lc.l}
}

// Use registers this config as the logger factory in ctx.
func (lc *LoggerConfig) Use(ctx context.Context) context.Context {
	return logging.SetFactory(ctx, lc.NewLogger)
}

func (lc *LoggerConfig) newGoLogger() *gol.Logger {
	// Level filtering is done by loggerImpl against the context, so the
	// backend lets everything through.
	l := gol.MustGetLogger("")
	l.ExtraCalldepth = 2
	format := lc.Format
	if format == "" {
		format = StandardFormat
	}
	out := lc.Out
	if out == nil {
		out = os.Stderr
	}
	backend := gol.NewBackendFormatter(gol.NewLogBackend(out, "", 0), gol.MustStringFormatter(format))
	leveled := gol.AddModuleLevel(backend)
	leveled.SetLevel(gol.DEBUG, "")
	l.SetBackend(leveled)
	return l
}

type loggerImpl struct {
	ctx context.Context
	l   *gol.Logger
}

func (li *loggerImpl) Debugf(format string, args ...any) {
	li.LogCall(logging.Debug, 1, format, args)
}

func (li *loggerImpl) Infof(format string, args ...any) {
	li.LogCall(logging.Info, 1, format, args)
}

func (li *loggerImpl) Warningf(format string, args ...any) {
	li.LogCall(logging.Warning, 1, format, args)
}

func (li *loggerImpl) Errorf(format string, args ...any) {
	li.LogCall(logging.Error, 1, format, args)
}

func (li *loggerImpl) LogCall(lvl logging.Level, calldepth int, format string, args []any) {
	if !logging.IsLogging(li.ctx, lvl) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if fields := logging.GetFields(li.ctx); len(fields) > 0 {
		msg = msg + " " + fields.String()
	}
	// go-logging treats the message as a format string; pass it through "%s".
	switch lvl {
	case logging.Debug:
		li.l.Debugf("%s", msg)
	case logging.Info:
		li.l.Infof("%s", msg)
	case logging.Warning:
		li.l.Warningf("%s", msg)
	default:
		li.l.Errorf("%s", msg)
	}
}
