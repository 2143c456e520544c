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

package endpoints

import (
	"context"

	"go.glassware.dev/glassware/common/errors"
	"go.glassware.dev/glassware/grpc/grpcutil"
	"go.glassware.dev/glassware/server/router"
)

type userKey struct{}

// WithUser returns a context carrying the calling user's id.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// CurrentUser returns the calling user's id, or "" for anonymous calls.
func CurrentUser(ctx context.Context) string {
	u, _ := ctx.Value(userKey{}).(string)
	return u
}

// RequireUser returns the calling user's id, or an Unauthenticated error for
// anonymous calls.
func RequireUser(ctx context.Context) (string, error) {
	if u := CurrentUser(ctx); u != "" {
		return u, nil
	}
	return "", errors.Reason("Invalid token.").Tag(grpcutil.UnauthenticatedTag).Err()
}

// UserFromHeader is middleware taking the user id from a trusted request
// header, set by the authenticating proxy in front of the server.
func UserFromHeader(header string) router.Middleware {
	return func(c *router.Context, next router.Handler) {
		if u := c.Request.Header.Get(header); u != "" {
			c.Request = c.Request.WithContext(WithUser(c.Request.Context(), u))
		}
		next(c)
	}
}
