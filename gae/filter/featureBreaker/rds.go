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

package featureBreaker

import (
	"context"

	ds "go.glassware.dev/glassware/gae/service/datastore"
)

type dsState struct {
	*state

	ds.RawInterface
}

func (r *dsState) Get(key *ds.Key, dst ds.PropertyLoadSaver) error {
	return r.run(func() error {
		return r.RawInterface.Get(key, dst)
	})
}

func (r *dsState) Put(key *ds.Key, src ds.PropertyLoadSaver) (ret *ds.Key, err error) {
	err = r.run(func() (err error) {
		ret, err = r.RawInterface.Put(key, src)
		return
	})
	return
}

func (r *dsState) Delete(key *ds.Key) error {
	return r.run(func() error {
		return r.RawInterface.Delete(key)
	})
}

func (r *dsState) Run(fq *ds.FinalizedQuery, limit int, start ds.Cursor, newDst func() ds.PropertyLoadSaver) (cur ds.Cursor, err error) {
	err = r.run(func() (err error) {
		cur, err = r.RawInterface.Run(fq, limit, start, newDst)
		return
	})
	return
}

// FilterRDS installs a featureBreaker datastore filter in the context.
func FilterRDS(c context.Context, defaultError error) (context.Context, FeatureBreaker) {
	state := newState(defaultError)
	return ds.AddRawFilters(c, func(ic context.Context, RawDatastore ds.RawInterface) ds.RawInterface {
		return &dsState{state, RawDatastore}
	}), state
}
