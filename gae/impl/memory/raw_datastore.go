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

package memory

import (
	"context"

	ds "go.glassware.dev/glassware/gae/service/datastore"
)

// dsImpl exists solely to bind the current c to the datastore data.
type dsImpl struct {
	data *Data
	c    context.Context
}

var _ ds.RawInterface = (*dsImpl)(nil)

func (d *dsImpl) Get(key *ds.Key, dst ds.PropertyLoadSaver) error {
	if err := d.c.Err(); err != nil {
		return err
	}
	return d.data.get(key, dst)
}

func (d *dsImpl) Put(key *ds.Key, src ds.PropertyLoadSaver) (*ds.Key, error) {
	if err := d.c.Err(); err != nil {
		return nil, err
	}
	return d.data.put(key, src)
}

func (d *dsImpl) Delete(key *ds.Key) error {
	if err := d.c.Err(); err != nil {
		return err
	}
	return d.data.del(key)
}

func (d *dsImpl) Run(fq *ds.FinalizedQuery, limit int, start ds.Cursor, newDst func() ds.PropertyLoadSaver) (ds.Cursor, error) {
	if err := d.c.Err(); err != nil {
		return "", err
	}
	return d.data.run(fq, limit, start, newDst)
}
