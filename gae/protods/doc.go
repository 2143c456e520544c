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

// Package protods maps datastore entity schemas onto protobuf messages.
//
// A Schema lists the persistent fields of a kind plus alias fields, which
// are computed and never stored. Once registered, a schema derives message
// classes (descriptors built at runtime) for any subset of its fields, and
// entities convert to and from instances of those classes:
//
//	var Person = protods.NewSchema("Person",
//		protods.String("name", protods.Required()),
//		protods.String("tags", protods.Repeated()),
//	)
//
//	protods.MustRegister(ctx, Person)
//	msg, err := e.ToMessage(ctx, protods.Fields("id", "name"))
//	e2, err := Person.FromMessage(ctx, msg)
//
// Every entity carries a QueryInfo that collects equality filters, an
// ancestor, an order, a limit and a cursor, and finalizes them into one
// datastore query.
package protods
