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

package errors

type tagDescription struct {
	description string
}

// TagKey identifies a tag. Create one with NewTagKey.
type TagKey *tagDescription

// TagValue is a (TagKey, value) pair applied to an error.
type TagValue struct {
	Key   TagKey
	Value any
}

// TagValueGenerator produces a TagValue for Annotator.Tag and New.
type TagValueGenerator interface {
	GenerateErrorTagValue() TagValue
}

// GenerateErrorTagValue implements TagValueGenerator.
func (t TagValue) GenerateErrorTagValue() TagValue { return t }

// Apply tags err directly. It returns nil if err is nil.
func (t TagValue) Apply(err error) error {
	if err == nil {
		return nil
	}
	return (&Annotator{inner: err}).Tag(t).Err()
}

// NewTagKey creates a new TagKey with a description used for debugging.
func NewTagKey(description string) TagKey {
	return &tagDescription{description}
}

// TagValueIn returns the outermost value associated with t in err.
func TagValueIn(t TagKey, err error) (value any, ok bool) {
	Walk(err, func(err error) bool {
		if ae, isAE := err.(*annotatedError); isAE {
			if value, ok = ae.tags[t]; ok {
				return false
			}
		}
		return true
	})
	return
}

// BoolTag is a tag that is either present on an error or not.
type BoolTag struct {
	Key TagKey
}

// NewBoolTag makes a new BoolTag.
func NewBoolTag(description string) BoolTag {
	return BoolTag{NewTagKey(description)}
}

// GenerateErrorTagValue implements TagValueGenerator.
func (b BoolTag) GenerateErrorTagValue() TagValue {
	return TagValue{Key: b.Key, Value: true}
}

// Apply tags err with b.
func (b BoolTag) Apply(err error) error {
	return b.GenerateErrorTagValue().Apply(err)
}

// In reports whether err carries b.
func (b BoolTag) In(err error) bool {
	v, ok := TagValueIn(b.Key, err)
	return ok && v.(bool)
}
