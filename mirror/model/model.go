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

// Package model declares the datastore schemas of the Mirror timeline
// service. Every entity is stored under the key of its owning user.
package model

import (
	"context"
	"strconv"

	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/gae/protods"
	ds "go.glassware.dev/glassware/gae/service/datastore"
	"go.glassware.dev/glassware/grpc/grpcutil"
)

// UserKind is the kind of the root key owning a user's entities. No User
// entities are stored.
const UserKind = "User"

// TimelineKind is the value of the read-only kind field of timeline items.
const TimelineKind = "mirror#timelineItem"

// Collections that can be subscribed to.
const (
	CollectionTimeline  = "timeline"
	CollectionLocations = "locations"
)

// Enums.
var (
	MenuAction = protods.NewEnumType("MenuAction", map[string]int32{
		"REPLY":         1,
		"REPLY_ALL":     2,
		"DELETE":        3,
		"SHARE":         4,
		"READ_ALOUD":    5,
		"VOICE_CALL":    6,
		"NAVIGATE":      7,
		"TOGGLE_PINNED": 8,
		"CUSTOM":        9,
		"VIEW_WEBSITE":  10,
		"PLAY_VIDEO":    11,
	})

	MenuValueState = protods.NewEnumType("MenuValueState", map[string]int32{
		"DEFAULT":   1,
		"PENDING":   2,
		"CONFIRMED": 3,
	})

	ContactType = protods.NewEnumType("ContactType", map[string]int32{
		"INDIVIDUAL": 1,
		"GROUP":      2,
	})

	CommandType = protods.NewEnumType("CommandType", map[string]int32{
		"TAKE_A_NOTE":    1,
		"POST_AN_UPDATE": 2,
	})

	UserActionType = protods.NewEnumType("UserActionType", map[string]int32{
		"REPLY":     1,
		"REPLY_ALL": 2,
		"DELETE":    3,
		"SHARE":     4,
		"PIN":       5,
		"UNPIN":     6,
		"LAUNCH":    7,
		"CUSTOM":    10,
	})

	Operation = protods.NewEnumType("Operation", map[string]int32{
		"UPDATE": 1,
		"INSERT": 2,
		"DELETE": 3,
	})
)

// Operations on subscribed collections.
const (
	OpUpdate protods.EnumValue = "UPDATE"
	OpInsert protods.EnumValue = "INSERT"
	OpDelete protods.EnumValue = "DELETE"
)

// Structured values embedded in timeline items and contacts.
var (
	MenuValue = protods.NewSchema("MenuValue",
		protods.String("displayName", protods.Required()),
		protods.String("iconUrl", protods.Required()),
		protods.Enum("state", MenuValueState),
	)

	MenuItem = protods.NewSchema("MenuItem",
		protods.Enum("action", MenuAction, protods.Required()),
		protods.String("id"),
		protods.String("payload"),
		protods.Boolean("removeWhenSelected", protods.Default(false)),
		protods.Structured("values", MenuValue, protods.Repeated()),
	)

	ItemLocation = protods.NewSchema("ItemLocation",
		protods.Float("latitude"),
		protods.Float("longitude"),
		protods.Float("accuracy"),
		protods.String("displayName"),
		protods.String("address"),
	)

	Attachment = protods.NewSchema("Attachment",
		protods.String("id"),
		protods.String("contentType"),
		protods.String("contentUrl"),
		protods.Boolean("isProcessingContent", protods.Default(false)),
	)

	TimelineContact = protods.NewSchema("TimelineContact",
		protods.String("acceptTypes", protods.Repeated()),
		protods.String("displayName"),
		protods.String("id", protods.Required()),
		protods.String("imageUrls", protods.Repeated()),
		protods.String("phoneNumber"),
		protods.String("source"),
		protods.Enum("type", ContactType),
	)

	Notification = protods.NewSchema("Notification",
		protods.String("level", protods.Default("DEFAULT")),
		protods.DateTime("deliveryTime"),
	)

	Command = protods.NewSchema("Command",
		protods.Enum("type", CommandType, protods.Required()),
	)
)

// TimelineContent lists the timeline item fields a client may write.
var TimelineContent = []string{
	"bundleId",
	"canonicalUrl",
	"creator",
	"displayTime",
	"html",
	"inReplyTo",
	"isBundleCover",
	"isPinned",
	"location",
	"menuItems",
	"notification",
	"pinScore",
	"recipients",
	"sourceItemId",
	"speakableText",
	"speakableType",
	"text",
	"title",
}

// TimelineItem is a card of a user's timeline.
var TimelineItem = protods.NewSchema("TimelineItem",
	protods.String("user", protods.Required()),
	protods.Structured("attachments", Attachment, protods.Repeated()),
	protods.String("bundleId"),
	protods.String("canonicalUrl"),
	protods.DateTime("created", protods.AutoNowAdd()),
	protods.Structured("creator", TimelineContact),
	protods.DateTime("displayTime"),
	protods.Text("html"),
	protods.Integer("inReplyTo"),
	protods.Boolean("isBundleCover"),
	protods.Boolean("isDeleted", protods.Default(false)),
	protods.Boolean("isPinned"),
	protods.Structured("location", ItemLocation),
	protods.Structured("menuItems", MenuItem, protods.Repeated()),
	protods.Structured("notification", Notification),
	protods.Integer("pinScore"),
	protods.Structured("recipients", TimelineContact, protods.Repeated()),
	protods.String("sourceItemId"),
	protods.Text("speakableText"),
	protods.Text("speakableType"),
	protods.String("text"),
	protods.String("title"),
	protods.DateTime("updated", protods.AutoNow()),
).Alias(
	protods.Alias("kind", protods.TypeString, func(context.Context, *protods.Entity) (any, error) {
		return TimelineKind, nil
	}),
	protods.Alias("includeDeleted", protods.TypeBoolean, nothing, protods.Default(false)).Setter(setIncludeDeleted),
	protods.Alias("pinnedOnly", protods.TypeBoolean, nothing, protods.Default(false)).Setter(setPinnedOnly),
	protods.Alias("maxResults", protods.TypeInteger, getMaxResults, protods.Default(20)).Setter(setMaxResults),
).MessageFields(protods.Fields(append([]string{
	"id", "kind", "attachments", "created", "isDeleted", "updated",
}, TimelineContent...)...))

// Contact is a person or group a user shares timeline items with. Contact
// ids are chosen by the client and unique per user.
var Contact *protods.Schema

func init() {
	Contact = protods.NewSchema("Contact",
		protods.String("user", protods.Required()),
		protods.Structured("acceptCommands", Command, protods.Repeated()),
		protods.String("acceptTypes", protods.Repeated()),
		protods.String("displayName", protods.Required()),
		protods.String("imageUrls", protods.Repeated()),
		protods.String("phoneNumber"),
		protods.Integer("priority"),
		protods.String("source"),
		protods.String("speakableName"),
		protods.Enum("type", ContactType),
	).Alias(
		protods.Alias("id", protods.TypeString, getContactID).Setter(setContactID),
	).MessageFields(protods.Fields(
		"id", "acceptCommands", "acceptTypes", "displayName", "imageUrls",
		"phoneNumber", "priority", "source", "speakableName", "type",
	))
}

// Subscription asks for notifications about changes to a collection.
var Subscription = protods.NewSchema("Subscription",
	protods.String("user", protods.Required()),
	protods.String("collection", protods.Required()),
	protods.String("userToken", protods.Required()),
	protods.String("verifyToken", protods.Required()),
	protods.Enum("operation", Operation, protods.Repeated()),
	protods.String("callbackUrl", protods.Required()),
).MessageFields(protods.Fields(
	"id", "collection", "userToken", "verifyToken", "operation", "callbackUrl",
))

// LatestLocation is the id of a user's most recent location.
const LatestLocation = "latest"

// Location is a position reported by a user's device.
var Location *protods.Schema

func init() {
	Location = protods.NewSchema("Location",
		protods.String("user", protods.Required()),
		protods.DateTime("timestamp", protods.AutoNowAdd()),
		protods.Float("latitude"),
		protods.Float("longitude"),
		protods.Float("accuracy"),
		protods.String("displayName"),
		protods.String("address"),
	).Alias(
		protods.Alias("id", protods.TypeString, getLocationID).Setter(setLocationID),
	).MessageFields(protods.Fields(
		"id", "timestamp", "latitude", "longitude", "accuracy", "displayName", "address",
	))
}

// Action is a user action on a timeline item, forwarded to subscribers and
// never stored.
var Action = protods.NewSchema("Action",
	protods.String("collection", protods.Default(CollectionTimeline)),
	protods.Integer("itemId", protods.Required()),
	protods.Enum("action", UserActionType, protods.Required()),
	protods.String("value"),
).MessageFields(protods.Fields("collection", "itemId", "action", "value"))

// ActionResponse answers an Action.
var ActionResponse = protods.NewSchema("ActionResponse",
	protods.Boolean("success", protods.Default(true)),
).MessageFields(protods.Fields("success"))

// Register adds the schemas to the default registry.
func Register(ctx context.Context) error {
	for _, s := range []*protods.Schema{TimelineItem, Contact, Subscription, Location, Action, ActionResponse} {
		if err := protods.Register(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// UserKey is the root key of user's entities.
func UserKey(user string) *ds.Key {
	return ds.NameKey(UserKind, user, nil)
}

// ForUser makes e belong to user: ids resolve under the user's key and
// queries only see the user's entities.
func ForUser(e *protods.Entity, user string) error {
	e.SetParent(UserKey(user))
	return e.Set("user", user)
}

func nothing(context.Context, *protods.Entity) (any, error) { return nil, nil }

// setIncludeDeleted hides deleted items unless asked for.
func setIncludeDeleted(_ context.Context, e *protods.Entity, v any) error {
	if include, _ := v.(bool); include {
		return nil
	}
	return e.QueryInfo().Eq("isDeleted", false)
}

func setPinnedOnly(_ context.Context, e *protods.Entity, v any) error {
	if pinned, _ := v.(bool); pinned {
		return e.QueryInfo().Eq("isPinned", true)
	}
	return nil
}

func getMaxResults(_ context.Context, e *protods.Entity) (any, error) {
	if l := e.QueryInfo().Limit(); l > 0 {
		return int64(l), nil
	}
	return nil, nil
}

func setMaxResults(_ context.Context, e *protods.Entity, v any) error {
	n, _ := v.(int64)
	return e.QueryInfo().SetLimit(int(n))
}

func getContactID(_ context.Context, e *protods.Entity) (any, error) {
	if k := e.Key(); k != nil && k.Name != "" {
		return k.Name, nil
	}
	return nil, nil
}

// setContactID points the contact at the client chosen id under its owner.
func setContactID(ctx context.Context, e *protods.Entity, v any) error {
	id, _ := v.(string)
	switch {
	case id == "":
		return errors.Reason("contact id must be a non-empty string").Err()
	case e.Parent() == nil:
		return errors.Reason("contact %q has no owner", id).Err()
	}
	return e.UpdateFromKey(ctx, ds.NameKey(Contact.Kind, id, e.Parent()))
}

func getLocationID(_ context.Context, e *protods.Entity) (any, error) {
	if k := e.Key(); k != nil && k.ID != 0 {
		return strconv.FormatInt(k.ID, 10), nil
	}
	return nil, nil
}

// setLocationID points the location at a numeric id under its owner, or at
// the owner's newest location for LatestLocation. An owner without locations
// leaves the entity unloaded.
func setLocationID(ctx context.Context, e *protods.Entity, v any) error {
	id, _ := v.(string)
	if e.Parent() == nil {
		return errors.Reason("location %q has no owner", id).Err()
	}
	if id == LatestLocation {
		qi := Location.NewEntity().QueryInfo()
		if err := qi.SetAncestor(e.Parent()); err != nil {
			return err
		}
		if err := qi.SetOrder("-timestamp"); err != nil {
			return err
		}
		if err := qi.SetQuery(); err != nil {
			return err
		}
		latest, _, err := protods.Fetch(ctx, qi, 1)
		if err != nil || len(latest) == 0 {
			return err
		}
		return e.UpdateFromKey(ctx, latest[0].Key())
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return errors.Reason("location id must be %q or a positive integer, got %q", LatestLocation, id).
			Tag(grpcutil.InvalidArgumentTag).Err()
	}
	return e.UpdateFromKey(ctx, ds.IDKey(Location.Kind, n, e.Parent()))
}
