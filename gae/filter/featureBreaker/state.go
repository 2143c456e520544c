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

// Package featureBreaker contains a datastore filter that can be told to fail
// selected methods, to test error handling paths.
package featureBreaker

import (
	"errors"
	"runtime"
	"strings"
	"sync"
)

// ErrFeatureBroken is the default error returned by a broken feature.
var ErrFeatureBroken = errors.New("featureBreaker: feature is broken")

// FeatureBreaker allows selected methods of a service to be broken.
type FeatureBreaker interface {
	// BreakFeatures makes the named methods (e.g. "Get", "Run") return err,
	// or the filter's default error if err is nil.
	BreakFeatures(err error, feature ...string)
	// UnbreakFeatures restores the named methods.
	UnbreakFeatures(feature ...string)
}

type state struct {
	lock         sync.Mutex
	broken       map[string]error
	defaultError error
}

var _ FeatureBreaker = (*state)(nil)

func newState(dflt error) *state {
	if dflt == nil {
		dflt = ErrFeatureBroken
	}
	return &state{broken: map[string]error{}, defaultError: dflt}
}

func (s *state) BreakFeatures(err error, feature ...string) {
	if err == nil {
		err = s.defaultError
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, f := range feature {
		s.broken[f] = err
	}
}

func (s *state) UnbreakFeatures(feature ...string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, f := range feature {
		delete(s.broken, f)
	}
}

func (s *state) check(feature string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.broken[feature]
}

// run executes f unless the caller's method is broken. The feature name is
// the name of the calling method.
func (s *state) run(f func() error) error {
	if err := s.check(callerName()); err != nil {
		return err
	}
	return f()
}

func callerName() string {
	pc, _, _, ok := runtime.Caller(2)
	if !ok {
		return ""
	}
	name := runtime.FuncForPC(pc).Name()
	return name[strings.LastIndex(name, ".")+1:]
}
