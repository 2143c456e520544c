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

// Package media keeps the content of timeline item attachments.
//
// Content lives in a Cloud Storage bucket when one is configured, and in
// datastore entities otherwise.
package media

import (
	"context"
	"flag"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/common/logging"
	"go.glassware.dev/glassware/grpc/grpcutil"
)

// ErrNotFound is returned by Get for unknown names.
var ErrNotFound = errors.New("media not found", grpcutil.NotFoundTag)

// Blob is stored content.
type Blob struct {
	ContentType string
	Data        []byte
}

// Store keeps blobs by name. Names are chosen by the caller.
type Store interface {
	Put(ctx context.Context, name string, b *Blob) error
	Get(ctx context.Context, name string) (*Blob, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

// Options configure where content is kept.
type Options struct {
	Bucket string `yaml:"attachment_bucket"`
}

// Register registers the command line flags.
func (o *Options) Register(f *flag.FlagSet) {
	f.StringVar(
		&o.Bucket,
		"attachment-bucket",
		o.Bucket,
		"Cloud Storage bucket with attachment content. If empty, content is kept in the datastore.",
	)
}

// Open returns the configured Store. The returned function releases the
// storage client and must be called on shutdown.
func (o *Options) Open(ctx context.Context, clientOpts ...option.ClientOption) (Store, func(), error) {
	if o.Bucket == "" {
		logging.Infof(ctx, "No -attachment-bucket, attachments are kept in the datastore")
		return Datastore{}, func() {}, nil
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, nil, errors.Annotate(err, "creating the storage client").Err()
	}
	logging.Infof(ctx, "Keeping attachments in gs://%s", o.Bucket)
	closer := func() {
		if err := client.Close(); err != nil {
			logging.WithError(err).Warningf(ctx, "Failed to close the storage client")
		}
	}
	return &GCS{Bucket: client.Bucket(o.Bucket)}, closer, nil
}
