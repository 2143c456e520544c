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

// Package memlogger records log messages in memory so tests can assert on
// them.
package memlogger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.glassware.dev/glassware/common/logging"
)

// LogEntry is a single recorded message.
type LogEntry struct {
	Level  logging.Level
	Msg    string
	Fields logging.Fields
}

// MemLogger is a logging.Logger that stores every message it receives.
type MemLogger struct {
	lock *sync.Mutex
	data *[]LogEntry
	ctx  context.Context
}

var _ logging.Logger = (*MemLogger)(nil)

func (m *MemLogger) Debugf(format string, args ...any) {
	m.LogCall(logging.Debug, 1, format, args)
}

func (m *MemLogger) Infof(format string, args ...any) {
	m.LogCall(logging.Info, 1, format, args)
}

func (m *MemLogger) Warningf(format string, args ...any) {
	m.LogCall(logging.Warning, 1, format, args)
}

func (m *MemLogger) Errorf(format string, args ...any) {
	m.LogCall(logging.Error, 1, format, args)
}

func (m *MemLogger) LogCall(lvl logging.Level, calldepth int, format string, args []any) {
	if m.ctx != nil && !logging.IsLogging(m.ctx, lvl) {
		return
	}
	var fields logging.Fields
	if m.ctx != nil {
		fields = logging.GetFields(m.ctx)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	*m.data = append(*m.data, LogEntry{lvl, fmt.Sprintf(format, args...), fields})
}

// Messages returns a copy of everything logged so far.
func (m *MemLogger) Messages() []LogEntry {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]LogEntry(nil), (*m.data)...)
}

// Reset discards recorded messages.
func (m *MemLogger) Reset() {
	m.lock.Lock()
	defer m.lock.Unlock()
	*m.data = nil
}

// HasFunc reports whether any message at level lvl satisfies fn.
func (m *MemLogger) HasFunc(lvl logging.Level, fn func(string) bool) bool {
	for _, e := range m.Messages() {
		if e.Level == lvl && fn(e.Msg) {
			return true
		}
	}
	return false
}

// HasSubstring reports whether a message at level lvl contains sub.
func (m *MemLogger) HasSubstring(lvl logging.Level, sub string) bool {
	return m.HasFunc(lvl, func(msg string) bool { return strings.Contains(msg, sub) })
}

// Use installs a fresh MemLogger into ctx, at Debug level. The returned
// context's logger can be recovered with Get.
func Use(ctx context.Context) context.Context {
	lock := &sync.Mutex{}
	data := &[]LogEntry{}
	ctx = logging.SetLevel(ctx, logging.Debug)
	return logging.SetFactory(ctx, func(c context.Context) logging.Logger {
		return &MemLogger{lock: lock, data: data, ctx: c}
	})
}

// Get returns the MemLogger installed by Use.
func Get(ctx context.Context) *MemLogger {
	return logging.Get(ctx).(*MemLogger)
}
