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

package media

import (
	"context"

	"go.glassware.dev/glassware/common/errors"
	ds "go.glassware.dev/glassware/gae/service/datastore"
	"go.glassware.dev/glassware/grpc/grpcutil"
)

// BlobKind is the datastore kind of blobs kept by Datastore.
const BlobKind = "MediaBlob"

// MaxBlobSize bounds the blobs Datastore accepts, leaving room for the rest
// of the entity under the datastore's 1 MiB limit.
const MaxBlobSize = 1000 * 1000

// Datastore keeps blobs as entities of BlobKind in the datastore of the
// context.
type Datastore struct{}

var _ Store = Datastore{}

func blobKey(name string) *ds.Key {
	return ds.NameKey(BlobKind, name, nil)
}

// Put stores b under name.
func (Datastore) Put(ctx context.Context, name string, b *Blob) error {
	if len(b.Data) > MaxBlobSize {
		return errors.Reason("media of %d bytes exceeds %d bytes", len(b.Data), MaxBlobSize).
			Tag(grpcutil.InvalidArgumentTag).Err()
	}
	pl := &ds.PropertyList{
		{Name: "contentType", Value: b.ContentType, NoIndex: true},
		{Name: "data", Value: b.Data, NoIndex: true},
	}
	if _, err := ds.Put(ctx, blobKey(name), pl); err != nil {
		return errors.Annotate(err, "storing %s", name).Err()
	}
	return nil
}

// Get loads the blob stored under name.
func (Datastore) Get(ctx context.Context, name string) (*Blob, error) {
	var pl ds.PropertyList
	switch err := ds.Get(ctx, blobKey(name), &pl); {
	case errors.Is(err, ds.ErrNoSuchEntity):
		return nil, ErrNotFound
	case err != nil:
		return nil, errors.Annotate(err, "loading %s", name).Err()
	}
	b := &Blob{}
	for _, p := range pl {
		switch v := p.Value.(type) {
		case string:
			if p.Name == "contentType" {
				b.ContentType = v
			}
		case []byte:
			if p.Name == "data" {
				b.Data = v
			}
		}
	}
	return b, nil
}

// Delete removes the blob stored under name.
func (Datastore) Delete(ctx context.Context, name string) error {
	if err := ds.Delete(ctx, blobKey(name)); err != nil {
		return errors.Annotate(err, "deleting %s", name).Err()
	}
	return nil
}
