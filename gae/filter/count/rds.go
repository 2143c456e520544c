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

package count

import (
	"context"

	ds "go.glassware.dev/glassware/gae/service/datastore"
)

// DSCounter is the counter object for the datastore service.
type DSCounter struct {
	Get    Entry
	Put    Entry
	Delete Entry
	Run    Entry
}

type dsCounter struct {
	c *DSCounter

	ds ds.RawInterface
}

var _ ds.RawInterface = (*dsCounter)(nil)

func (r *dsCounter) Get(key *ds.Key, dst ds.PropertyLoadSaver) error {
	err := r.ds.Get(key, dst)
	if err == ds.ErrNoSuchEntity {
		// A miss is an answer, not a failure.
		r.c.Get.record(nil)
		return err
	}
	return r.c.Get.record(err)
}

func (r *dsCounter) Put(key *ds.Key, src ds.PropertyLoadSaver) (*ds.Key, error) {
	ret, err := r.ds.Put(key, src)
	return ret, r.c.Put.record(err)
}

func (r *dsCounter) Delete(key *ds.Key) error {
	return r.c.Delete.record(r.ds.Delete(key))
}

func (r *dsCounter) Run(fq *ds.FinalizedQuery, limit int, start ds.Cursor, newDst func() ds.PropertyLoadSaver) (ds.Cursor, error) {
	cur, err := r.ds.Run(fq, limit, start, newDst)
	return cur, r.c.Run.record(err)
}

// FilterRDS installs a counter datastore filter in the context.
func FilterRDS(c context.Context) (context.Context, *DSCounter) {
	state := &DSCounter{}
	return ds.AddRawFilters(c, func(ic context.Context, rds ds.RawInterface) ds.RawInterface {
		return &dsCounter{state, rds}
	}), state
}
