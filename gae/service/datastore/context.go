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

package datastore

import (
	"context"
)

type key int

var (
	rawDatastoreKey       key
	rawDatastoreFilterKey key = 1
)

// RawFactory is the function signature for factory methods compatible with
// SetRawFactory.
type RawFactory func(c context.Context) RawInterface

// RawFilter is the function signature for a filter RDS implementation. It
// gets the current RDS implementation, and returns a new RDS implementation
// backed by the one passed in.
type RawFilter func(context.Context, RawInterface) RawInterface

// getUnfiltered gets gets the RawInterface implementation from context without
// any of the filters applied.
func getUnfiltered(c context.Context) RawInterface {
	if f, ok := c.Value(rawDatastoreKey).(RawFactory); ok && f != nil {
		return f(c)
	}
	return nil
}

// getFiltered gets the datastore (transactional or not), and applies all of
// the currently installed filters to it.
func getFiltered(c context.Context) RawInterface {
	ret := getUnfiltered(c)
	if ret == nil {
		return nil
	}
	for _, f := range getCurFilters(c) {
		ret = f(c, ret)
	}
	return applyCheckFilter(c, ret)
}

// Raw gets the RawInterface implementation from context, with every filter
// applied. It returns nil if no implementation is installed.
func Raw(c context.Context) RawInterface {
	return getFiltered(c)
}

// SetRawFactory sets the function to produce Datastore instances, as returned
// by the Raw method.
func SetRawFactory(c context.Context, rdsf RawFactory) context.Context {
	return context.WithValue(c, rawDatastoreKey, rdsf)
}

// SetRaw sets the current Datastore object in the context. Useful for testing
// with a quick mock. This is just a shorthand SetRawFactory invocation to set
// a factory which always returns the same object.
func SetRaw(c context.Context, rds RawInterface) context.Context {
	return SetRawFactory(c, func(context.Context) RawInterface { return rds })
}

func getCurFilters(c context.Context) []RawFilter {
	curFiltsI := c.Value(rawDatastoreFilterKey)
	if curFiltsI != nil {
		return curFiltsI.([]RawFilter)
	}
	return nil
}

// AddRawFilters adds RawInterface filters to the context. Filters added later
// wrap filters added earlier.
func AddRawFilters(c context.Context, filts ...RawFilter) context.Context {
	if len(filts) == 0 {
		return c
	}
	cur := getCurFilters(c)
	newFilts := make([]RawFilter, 0, len(cur)+len(filts))
	newFilts = append(newFilts, cur...)
	newFilts = append(newFilts, filts...)
	return context.WithValue(c, rawDatastoreFilterKey, newFilts)
}

func mustRaw(c context.Context) RawInterface {
	rds := Raw(c)
	if rds == nil {
		panic("datastore: no implementation installed in the context")
	}
	return rds
}

// Get loads the entity stored under key into dst.
func Get(c context.Context, key *Key, dst PropertyLoadSaver) error {
	return mustRaw(c).Get(key, dst)
}

// Put stores src under key, allocating an ID if key is incomplete.
func Put(c context.Context, key *Key, src PropertyLoadSaver) (*Key, error) {
	return mustRaw(c).Put(key, src)
}

// Delete removes the entity stored under key.
func Delete(c context.Context, key *Key) error {
	return mustRaw(c).Delete(key)
}

// Run fetches one page of fq's results. See RawInterface.Run.
func Run(c context.Context, fq *FinalizedQuery, limit int, start Cursor, newDst func() PropertyLoadSaver) (Cursor, error) {
	return mustRaw(c).Run(fq, limit, start, newDst)
}
