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
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/luci/gtreap"

	"go.glassware.dev/glassware/common/errors"
	ds "go.glassware.dev/glassware/gae/service/datastore"
)

type storedEntity struct {
	key   *ds.Key
	props []ds.Property
}

// indexRow is an entry of an index: the values of the index columns followed
// by the entity key. Rows used as lookup or resume pivots have no ent.
type indexRow struct {
	vals []any
	key  *ds.Key
	ent  *storedEntity
}

// index keeps the rows of one kind sorted by its columns, then by key. The
// index with no columns is the kind's entity table.
//
// rows is a persistent treap: every mutation yields a new root, so a reader
// holding an old root keeps a consistent snapshot without locking.
type index struct {
	cols    []ds.IndexColumn
	rows    *gtreap.Treap
	compare gtreap.Compare
}

func newIndex(cols []ds.IndexColumn) *index {
	idx := &index{cols: cols}
	idx.compare = func(a, b any) int {
		x, y := a.(*indexRow), b.(*indexRow)
		for i, col := range idx.cols {
			r := compareValues(x.vals[i], y.vals[i])
			if col.Descending {
				r = -r
			}
			if r != 0 {
				return r
			}
		}
		return compareKeys(x.key, y.key)
	}
	idx.rows = gtreap.NewTreap(idx.compare)
	return idx
}

// row returns the index row of ent, or false if ent lacks an indexed value
// for one of the columns.
func (idx *index) row(ent *storedEntity) (*indexRow, bool) {
	row := &indexRow{key: ent.key, ent: ent, vals: make([]any, len(idx.cols))}
	for i, col := range idx.cols {
		vals, ok := indexedValues(ent, col.Property)
		if !ok {
			return nil, false
		}
		row.vals[i] = extreme(vals, col.Descending)
	}
	return row, true
}

func (idx *index) add(ent *storedEntity) {
	if row, ok := idx.row(ent); ok {
		idx.rows = idx.rows.Upsert(row, rand.Int())
	}
}

func (idx *index) remove(ent *storedEntity) {
	if row, ok := idx.row(ent); ok {
		idx.rows = idx.rows.Delete(row)
	}
}

// ascend visits the rows of t from pivot (or from the first row if pivot is
// nil) until fn returns false.
func ascend(t *gtreap.Treap, pivot *indexRow, fn func(*indexRow) bool) {
	var start gtreap.Item = pivot
	if pivot == nil {
		if start = t.Min(); start == nil {
			return
		}
	}
	t.VisitAscend(start, func(i gtreap.Item) bool {
		return fn(i.(*indexRow))
	})
}

func indexName(cols []ds.IndexColumn) string {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.String()
	}
	return strings.Join(names, ",")
}

// kindData is the entity table of a kind plus the indexes built for it so
// far. Indexes are created by the first query that needs them and kept up to
// date by every later write.
type kindData struct {
	indexes map[string]*index
}

func newKindData() *kindData {
	return &kindData{indexes: map[string]*index{"": newIndex(nil)}}
}

func (kd *kindData) entities() *index { return kd.indexes[""] }

func (kd *kindData) lookup(key *ds.Key) *storedEntity {
	if item := kd.entities().rows.Get(&indexRow{key: key}); item != nil {
		return item.(*indexRow).ent
	}
	return nil
}

func (kd *kindData) addIndex(cols []ds.IndexColumn) *index {
	idx := newIndex(cols)
	ascend(kd.entities().rows, nil, func(r *indexRow) bool {
		idx.add(r.ent)
		return true
	})
	kd.indexes[indexName(cols)] = idx
	return idx
}

// Data is the shared state of an in-memory datastore.
type Data struct {
	lock   sync.RWMutex
	kinds  map[string]*kindData
	count  int
	lastID int64
}

// NewData returns an empty store.
func NewData() *Data {
	return &Data{kinds: map[string]*kindData{}}
}

// Len returns the number of stored entities.
func (d *Data) Len() int {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.count
}

// kindLocked returns the data of kind, creating it. d.lock must be held for
// writing.
func (d *Data) kindLocked(kind string) *kindData {
	kd := d.kinds[kind]
	if kd == nil {
		kd = newKindData()
		d.kinds[kind] = kd
	}
	return kd
}

func (d *Data) put(key *ds.Key, src ds.PropertyLoadSaver) (*ds.Key, error) {
	props, err := src.Save()
	if err != nil {
		return nil, errors.Annotate(err, "memory: saving %s", key).Err()
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	if key.Incomplete() {
		d.lastID++
		nk := *key
		nk.ID = d.lastID
		key = &nk
	}
	kd := d.kindLocked(key.Kind)
	ent := &storedEntity{key: key, props: copyProps(props)}
	old := kd.lookup(key)
	for _, idx := range kd.indexes {
		if old != nil {
			idx.remove(old)
		}
		idx.add(ent)
	}
	if old == nil {
		d.count++
	}
	return key, nil
}

func (d *Data) get(key *ds.Key, dst ds.PropertyLoadSaver) error {
	d.lock.RLock()
	var ent *storedEntity
	if kd := d.kinds[key.Kind]; kd != nil {
		ent = kd.lookup(key)
	}
	d.lock.RUnlock()
	if ent == nil {
		return ds.ErrNoSuchEntity
	}
	return load(ent, dst)
}

func (d *Data) del(key *ds.Key) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	kd := d.kinds[key.Kind]
	if kd == nil {
		return nil
	}
	if old := kd.lookup(key); old != nil {
		for _, idx := range kd.indexes {
			idx.remove(old)
		}
		d.count--
	}
	return nil
}

// snapshot returns the current rows of the index of kind over cols, building
// the index if no query asked for it before.
func (d *Data) snapshot(kind string, cols []ds.IndexColumn) index {
	name := indexName(cols)
	d.lock.RLock()
	if kd := d.kinds[kind]; kd != nil {
		if idx := kd.indexes[name]; idx != nil {
			snap := *idx
			d.lock.RUnlock()
			return snap
		}
	}
	d.lock.RUnlock()

	d.lock.Lock()
	defer d.lock.Unlock()
	kd := d.kindLocked(kind)
	idx := kd.indexes[name]
	if idx == nil {
		idx = kd.addIndex(cols)
	}
	return *idx
}

func load(ent *storedEntity, dst ds.PropertyLoadSaver) error {
	if kl, ok := dst.(ds.KeyLoader); ok {
		if err := kl.LoadKey(ent.key); err != nil {
			return err
		}
	}
	return dst.Load(copyProps(ent.props))
}

// copyProps copies the property slice and any multi-value slices inside it,
// so that loaders and savers never share memory with the store.
func copyProps(props []ds.Property) []ds.Property {
	ret := make([]ds.Property, len(props))
	for i, p := range props {
		ret[i] = p
		ret[i].Value = copyValue(p.Value)
	}
	return ret
}

func copyValue(v any) any {
	switch x := v.(type) {
	case []any:
		vs := make([]any, len(x))
		for i, e := range x {
			vs[i] = copyValue(e)
		}
		return vs
	case []byte:
		return append([]byte(nil), x...)
	case *ds.Entity:
		if x == nil {
			return x
		}
		return &ds.Entity{Key: x.Key, Properties: copyProps(x.Properties)}
	default:
		return v
	}
}
