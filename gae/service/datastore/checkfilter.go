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
	"fmt"
)

// checkFilter rejects malformed calls before they reach the implementation.
type checkFilter struct {
	RawInterface
}

func (tcf *checkFilter) Get(key *Key, dst PropertyLoadSaver) error {
	if key == nil || key.Incomplete() || !validKey(key) {
		return ErrInvalidKey
	}
	if dst == nil {
		return fmt.Errorf("datastore: Get destination is nil")
	}
	return tcf.RawInterface.Get(key, dst)
}

func (tcf *checkFilter) Put(key *Key, src PropertyLoadSaver) (*Key, error) {
	if key == nil || !validKey(key) {
		return nil, ErrInvalidKey
	}
	if src == nil {
		return nil, fmt.Errorf("datastore: Put source is nil")
	}
	return tcf.RawInterface.Put(key, src)
}

func (tcf *checkFilter) Delete(key *Key) error {
	if key == nil || key.Incomplete() || !validKey(key) {
		return ErrInvalidKey
	}
	return tcf.RawInterface.Delete(key)
}

func (tcf *checkFilter) Run(fq *FinalizedQuery, limit int, start Cursor, newDst func() PropertyLoadSaver) (Cursor, error) {
	if fq == nil {
		return "", fmt.Errorf("datastore: Run query is nil")
	}
	if newDst == nil {
		return "", fmt.Errorf("datastore: Run destination factory is nil")
	}
	if limit <= 0 {
		return "", fmt.Errorf("datastore: Run limit must be positive, got %d", limit)
	}
	return tcf.RawInterface.Run(fq, limit, start, newDst)
}

// validKey checks every element of key except the leaf's ID, which may be
// unset on an incomplete key.
func validKey(key *Key) bool {
	for k := key; k != nil; k = k.Parent {
		if k.Kind == "" || (k.Name != "" && k.ID != 0) {
			return false
		}
		if k != key && k.Incomplete() {
			return false
		}
		if k.Parent != nil && k.Parent.Namespace != k.Namespace {
			return false
		}
	}
	return true
}

func applyCheckFilter(_ context.Context, i RawInterface) RawInterface {
	return &checkFilter{i}
}
