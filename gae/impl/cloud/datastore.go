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

// Package cloud implements the datastore service on top of the Cloud
// Datastore client library.
package cloud

import (
	"context"

	cloudds "cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/common/logging"
	ds "go.glassware.dev/glassware/gae/service/datastore"
	"go.glassware.dev/glassware/grpc/grpcutil"
)

// Config is a Cloud Datastore installation.
type Config struct {
	// Client is the Cloud Datastore client. It must be non-nil.
	Client *cloudds.Client

	// Namespace, if set, scopes every query. Keys carry their own namespace.
	Namespace string
}

// NewClient creates a Cloud Datastore client for project. With the
// DATASTORE_EMULATOR_HOST environment variable set, the client talks to the
// emulator instead.
func NewClient(c context.Context, project string, opts ...option.ClientOption) (*cloudds.Client, error) {
	client, err := cloudds.NewClient(c, project, opts...)
	if err != nil {
		return nil, errors.Annotate(err, "creating datastore client for %q", project).Err()
	}
	return client, nil
}

// Use installs the Cloud Datastore implementation into the context.
func (cfg Config) Use(c context.Context) context.Context {
	return ds.SetRawFactory(c, func(ic context.Context) ds.RawInterface {
		return &boundDatastore{ic, cfg}
	})
}

// boundDatastore binds a client to the context of a single request.
type boundDatastore struct {
	c context.Context
	Config
}

var _ ds.RawInterface = (*boundDatastore)(nil)

func (bds *boundDatastore) Get(key *ds.Key, dst ds.PropertyLoadSaver) error {
	return bds.Client.Get(bds.c, key, dst)
}

func (bds *boundDatastore) Put(key *ds.Key, src ds.PropertyLoadSaver) (*ds.Key, error) {
	return bds.Client.Put(bds.c, key, src)
}

func (bds *boundDatastore) Delete(key *ds.Key) error {
	return bds.Client.Delete(bds.c, key)
}

func (bds *boundDatastore) Run(fq *ds.FinalizedQuery, limit int, start ds.Cursor, newDst func() ds.PropertyLoadSaver) (ds.Cursor, error) {
	q, err := bds.prepareNativeQuery(fq, limit, start)
	if err != nil {
		return "", err
	}
	logging.Debugf(bds.c, "running %s (limit %d)", fq, limit)

	it := bds.Client.Run(bds.c, q)
	for i := 0; i < limit; i++ {
		var pl cloudds.PropertyList
		key, err := it.Next(&pl)
		switch {
		case err == iterator.Done:
			return "", nil
		case err != nil:
			return "", errors.Annotate(err, "running %s", fq).Err()
		}
		if err := loadResult(newDst(), key, pl); err != nil {
			return "", errors.Annotate(err, "loading %s", key).Err()
		}
	}
	cur, err := it.Cursor()
	if err != nil {
		return "", errors.Annotate(err, "reading cursor of %s", fq).Err()
	}

	// The query was issued with limit+1, so one more result tells whether
	// there is a next page.
	switch _, err := it.Next(&cloudds.PropertyList{}); {
	case err == iterator.Done:
		return "", nil
	case err != nil:
		return "", errors.Annotate(err, "probing %s", fq).Err()
	}
	return ds.Cursor(cur.String()), nil
}

func (bds *boundDatastore) prepareNativeQuery(fq *ds.FinalizedQuery, limit int, start ds.Cursor) (*cloudds.Query, error) {
	q := cloudds.NewQuery(fq.Kind())
	if bds.Namespace != "" {
		q = q.Namespace(bds.Namespace)
	}
	if anc := fq.Ancestor(); anc != nil {
		q = q.Ancestor(anc)
	}
	filts := fq.EqFilters()
	for _, field := range fq.EqFields() {
		for _, v := range filts[field] {
			q = q.FilterField(field, "=", v)
		}
	}
	for _, col := range fq.Orders() {
		q = q.Order(col.String())
	}
	if start != "" {
		cur, err := cloudds.DecodeCursor(string(start))
		if err != nil {
			return nil, errors.Annotate(err, "decoding cursor").Tag(grpcutil.InvalidArgumentTag).Err()
		}
		q = q.Start(cur)
	}
	return q.Limit(limit + 1), nil
}

// loadResult loads a query result the way the client library loads Get
// results: key first, then properties.
func loadResult(dst ds.PropertyLoadSaver, key *ds.Key, pl cloudds.PropertyList) error {
	if kl, ok := dst.(ds.KeyLoader); ok {
		if err := kl.LoadKey(key); err != nil {
			return err
		}
	}
	return dst.Load(pl)
}
