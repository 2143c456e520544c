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

// Package datastore is a context-injected facade over an entity store.
//
// Implementations (in-memory for tests, Cloud Datastore in production) are
// installed with SetRaw or SetRawFactory, and may be wrapped by filters
// (caching, tracing, fault injection) with AddRawFilters. Entities travel
// as PropertyLoadSaver values, and keys are Cloud Datastore keys.
package datastore

import (
	cloudds "cloud.google.com/go/datastore"
)

// Key is a datastore key.
type Key = cloudds.Key

// Property is a single named value of an entity. A Value of type []any
// holds a multi-valued property.
type Property = cloudds.Property

// PropertyLoadSaver converts to and from a list of properties.
type PropertyLoadSaver = cloudds.PropertyLoadSaver

// KeyLoader is a PropertyLoadSaver that also receives its key on load.
type KeyLoader = cloudds.KeyLoader

// PropertyList is the simplest PropertyLoadSaver.
type PropertyList = cloudds.PropertyList

// GeoPoint is a latitude/longitude pair.
type GeoPoint = cloudds.GeoPoint

// Entity is a nested (structured) property value.
type Entity = cloudds.Entity

var (
	// ErrNoSuchEntity is returned by Get when no entity exists for the key.
	ErrNoSuchEntity = cloudds.ErrNoSuchEntity

	// ErrInvalidKey is returned for keys that are nil, incomplete where a
	// complete key is required, or otherwise malformed.
	ErrInvalidKey = cloudds.ErrInvalidKey
)

// Key constructors and codec.
var (
	NameKey       = cloudds.NameKey
	IDKey         = cloudds.IDKey
	IncompleteKey = cloudds.IncompleteKey
	DecodeKey     = cloudds.DecodeKey
)

// Cursor is an opaque position in a query's result set. The empty Cursor
// means the beginning of the results when passed to Run, and the end of the
// results when returned from it.
type Cursor string

// RawInterface is the interface implemented by datastore backends and
// filters. It is bound to the context it was obtained from.
type RawInterface interface {
	// Get loads the entity for key into dst. Returns ErrNoSuchEntity if there
	// is none.
	Get(key *Key, dst PropertyLoadSaver) error

	// Put stores src under key. If key is incomplete a new ID is allocated.
	// Returns the complete key.
	Put(key *Key, src PropertyLoadSaver) (*Key, error)

	// Delete removes the entity for key. Deleting a missing entity is not an
	// error.
	Delete(key *Key) error

	// Run executes fq, starting at start, and loads up to limit results. For
	// each result newDst is called and the returned value is loaded (and
	// given its key, if it is a KeyLoader).
	//
	// The returned cursor resumes after the last loaded result, and is empty
	// if no results remain.
	Run(fq *FinalizedQuery, limit int, start Cursor, newDst func() PropertyLoadSaver) (next Cursor, err error)
}
