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

// Package count contains a datastore filter that counts calls, for
// asserting on datastore traffic in tests.
package count

import (
	"fmt"
	"sync/atomic"
)

// Entry counts the outcomes of calls to one method.
type Entry struct {
	ok, failed atomic.Int64
}

func (e *Entry) String() string {
	return fmt.Sprintf("{Successes:%d, Errors:%d}", e.Successes(), e.Errors())
}

// Total is the number of calls.
func (e *Entry) Total() int64 { return e.ok.Load() + e.failed.Load() }

// Successes is the number of calls that returned nil.
func (e *Entry) Successes() int { return int(e.ok.Load()) }

// Errors is the number of calls that failed.
func (e *Entry) Errors() int { return int(e.failed.Load()) }

// record counts err and returns it.
func (e *Entry) record(err error) error {
	if err != nil {
		e.failed.Add(1)
	} else {
		e.ok.Add(1)
	}
	return err
}
