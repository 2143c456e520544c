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

// Package memory provides an in-memory implementation of the datastore
// service, for tests and local development.
//
// It follows Cloud Datastore semantics where they matter to callers:
// allocated IDs for incomplete keys, equality filters matched against any
// value of a multi-valued property, unindexed properties invisible to
// queries, and results ordered by the requested properties and then by key.
package memory

import (
	"context"

	ds "go.glassware.dev/glassware/gae/service/datastore"
)

// Use installs a fresh, empty in-memory datastore into the context.
func Use(c context.Context) context.Context {
	return UseData(c, NewData())
}

// UseData installs an in-memory datastore backed by data. Contexts sharing
// a Data see the same entities.
func UseData(c context.Context, data *Data) context.Context {
	return ds.SetRawFactory(c, func(ic context.Context) ds.RawInterface {
		return &dsImpl{data, ic}
	})
}
