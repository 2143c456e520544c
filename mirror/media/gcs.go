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
	"io"

	"cloud.google.com/go/storage"

	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/grpc/grpcutil"
)

// MaxObjectSize bounds the blobs read back from Cloud Storage.
const MaxObjectSize = 32 << 20

// GCS keeps blobs as objects of a Cloud Storage bucket.
type GCS struct {
	Bucket *storage.BucketHandle
}

var _ Store = (*GCS)(nil)

// Put uploads b as object name.
func (g *GCS) Put(ctx context.Context, name string, b *Blob) error {
	w := g.Bucket.Object(name).NewWriter(ctx)
	w.ContentType = b.ContentType
	if _, err := w.Write(b.Data); err != nil {
		_ = w.Close()
		return errors.Annotate(err, "writing %s", name).Err()
	}
	if err := w.Close(); err != nil {
		return errors.Annotate(err, "writing %s", name).Err()
	}
	return nil
}

// Get downloads object name.
func (g *GCS) Get(ctx context.Context, name string) (*Blob, error) {
	r, err := g.Bucket.Object(name).NewReader(ctx)
	switch {
	case errors.Is(err, storage.ErrObjectNotExist):
		return nil, ErrNotFound
	case err != nil:
		return nil, errors.Annotate(err, "opening %s", name).Err()
	}
	defer r.Close()
	if r.Attrs.Size > MaxObjectSize {
		return nil, errors.Reason("%s has %d bytes, more than %d", name, r.Attrs.Size, MaxObjectSize).
			Tag(grpcutil.FailedPreconditionTag).Err()
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Annotate(err, "reading %s", name).Err()
	}
	return &Blob{ContentType: r.Attrs.ContentType, Data: data}, nil
}

// Delete removes object name.
func (g *GCS) Delete(ctx context.Context, name string) error {
	err := g.Bucket.Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return errors.Annotate(err, "deleting %s", name).Err()
	}
	return nil
}
