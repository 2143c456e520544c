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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.glassware.dev/glassware/gae/impl/memory"
	"go.glassware.dev/glassware/gae/protods"
	ds "go.glassware.dev/glassware/gae/service/datastore"
	"go.glassware.dev/glassware/server/middleware"
	"go.glassware.dev/glassware/server/router"

	. "github.com/smartystreets/goconvey/convey"
	. "go.glassware.dev/glassware/common/testing/assertions"
)

func TestEndpoints(t *testing.T) {
	t.Parallel()

	Convey("With a person API", t, func() {
		ctx := memory.Use(context.Background())
		reg := protods.NewRegistry()
		person := protods.NewSchema("Person",
			protods.String("name", protods.Required()),
			protods.String("tags", protods.Repeated()),
		)
		So(reg.Register(ctx, person), ShouldBeNil)

		underUser := func(ctx context.Context, e *protods.Entity) error {
			e.SetParent(ds.NameKey("User", CurrentUser(ctx), nil))
			return nil
		}
		must := func(h router.Handler, err error) router.Handler {
			So(err, ShouldBeNil)
			return h
		}

		r := router.New()
		r.Use(router.NewMiddlewareChain(middleware.TestingBase(ctx), UserFromHeader("X-User")))
		api := r.Subrouter("/api")

		api.POST("/people", nil, must(Method(person, Options{
			RequestFields:  protods.Fields("name", "tags"),
			ResponseFields: protods.Fields("id", "name", "tags"),
			UserRequired:   true,
			Prepare:        underUser,
			SuccessStatus:  http.StatusCreated,
		}, func(ctx context.Context, e *protods.Entity) (*protods.Entity, error) {
			return e, protods.Put(ctx, e)
		})))

		api.GET("/people/:id", nil, must(Method(person, Options{
			RequestFields:  protods.Fields("id"),
			ResponseFields: protods.Fields("id", "name", "tags"),
			UserRequired:   true,
			Prepare:        underUser,
		}, func(ctx context.Context, e *protods.Entity) (*protods.Entity, error) {
			if !e.FromDatastore() {
				return nil, NotFound("no person %s", PathParams(ctx).ByName("id"))
			}
			return e, nil
		})))

		api.DELETE("/people/:id", nil, must(Method(person, Options{
			RequestFields: protods.Fields("id"),
			UserRequired:  true,
			Prepare:       underUser,
		}, func(ctx context.Context, e *protods.Entity) (*protods.Entity, error) {
			if !e.FromDatastore() {
				return nil, NotFound("no person")
			}
			return nil, protods.Delete(ctx, e)
		})))

		api.GET("/people", nil, must(QueryMethod(person, QueryOptions{
			QueryFields:      protods.Fields("name", "tags", "limit", "order", "pageToken"),
			CollectionFields: protods.Fields("id", "name"),
			UserRequired:     true,
		}, func(ctx context.Context, e *protods.Entity) error {
			qi := e.QueryInfo()
			if err := qi.SetAncestor(ds.NameKey("User", CurrentUser(ctx), nil)); err != nil {
				return err
			}
			if qi.Order() == "" {
				return qi.SetOrder("name")
			}
			return nil
		})))

		call := func(method, path, user, body string) (int, map[string]any) {
			req := httptest.NewRequest(method, path, strings.NewReader(body))
			if user != "" {
				req.Header.Set("X-User", user)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			var out map[string]any
			if rec.Body.Len() > 0 {
				So(json.Unmarshal(rec.Body.Bytes(), &out), ShouldBeNil)
			}
			return rec.Code, out
		}
		errorOf := func(out map[string]any) map[string]any {
			So(out, ShouldContainKey, "error")
			return out["error"].(map[string]any)
		}

		Convey("inserts and gets", func() {
			code, out := call("POST", "/api/people", "ada", `{"name": "Ada", "tags": ["math"]}`)
			So(code, ShouldEqual, http.StatusCreated)
			So(out["name"], ShouldEqual, "Ada")
			So(out["tags"], ShouldResemble, []any{"math"})
			id := out["id"].(string)
			So(id, ShouldNotEqual, "")

			code, out = call("GET", "/api/people/"+id, "ada", "")
			So(code, ShouldEqual, http.StatusOK)
			So(out, ShouldResemble, map[string]any{"id": id, "name": "Ada", "tags": []any{"math"}})

			Convey("only for the owner", func() {
				code, out := call("GET", "/api/people/"+id, "bob", "")
				So(code, ShouldEqual, http.StatusNotFound)
				So(errorOf(out), ShouldResemble, map[string]any{
					"code":    404.0,
					"status":  "NOT_FOUND",
					"message": "no person " + id,
				})
			})

			Convey("and deletes", func() {
				code, out := call("DELETE", "/api/people/"+id, "ada", "")
				So(code, ShouldEqual, http.StatusNoContent)
				So(out, ShouldBeNil)
				code, _ = call("GET", "/api/people/"+id, "ada", "")
				So(code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("requires a user", func() {
			code, out := call("POST", "/api/people", "", `{"name": "Ada"}`)
			So(code, ShouldEqual, http.StatusUnauthorized)
			So(errorOf(out)["status"], ShouldEqual, "UNAUTHENTICATED")
			So(errorOf(out)["message"], ShouldEqual, "Invalid token.")
		})

		Convey("rejects bad bodies", func() {
			code, out := call("POST", "/api/people", "ada", `{"name": 7}`)
			So(code, ShouldEqual, http.StatusBadRequest)
			So(errorOf(out)["status"], ShouldEqual, "INVALID_ARGUMENT")

			code, _ = call("POST", "/api/people", "ada", `{"nope": 7}`)
			So(code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("rejects missing required fields", func() {
			code, out := call("POST", "/api/people", "ada", `{"tags": ["x"]}`)
			So(code, ShouldEqual, http.StatusBadRequest)
			So(errorOf(out)["message"], ShouldContainSubstring, `required field "name" is missing`)
		})

		Convey("rejects bad ids", func() {
			code, _ := call("GET", "/api/people/abc", "ada", "")
			So(code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("queries", func() {
			for i := 0; i < 15; i++ {
				code, _ := call("POST", "/api/people", "ada", fmt.Sprintf(`{"name": "p%02d"}`, i))
				So(code, ShouldEqual, http.StatusCreated)
			}
			code, _ := call("POST", "/api/people", "bob", `{"name": "other"}`)
			So(code, ShouldEqual, http.StatusCreated)

			Convey("in pages", func() {
				code, out := call("GET", "/api/people", "ada", "")
				So(code, ShouldEqual, http.StatusOK)
				So(out["items"], ShouldHaveLength, 10)
				first := out["items"].([]any)[0].(map[string]any)
				So(first["name"], ShouldEqual, "p00")
				So(first, ShouldContainKey, "id")
				token := out["nextPageToken"].(string)

				code, out = call("GET", "/api/people?pageToken="+url.QueryEscape(token), "ada", "")
				So(code, ShouldEqual, http.StatusOK)
				So(out["items"], ShouldHaveLength, 5)
				So(out, ShouldNotContainKey, "nextPageToken")
			})

			Convey("with filters and orders", func() {
				code, out := call("GET", "/api/people?name=p03", "ada", "")
				So(code, ShouldEqual, http.StatusOK)
				So(out["items"], ShouldHaveLength, 1)

				code, out = call("GET", "/api/people?order=-name&limit=2", "ada", "")
				So(code, ShouldEqual, http.StatusOK)
				items := out["items"].([]any)
				So(items[0].(map[string]any)["name"], ShouldEqual, "p14")
				So(items[1].(map[string]any)["name"], ShouldEqual, "p13")
			})

			Convey("within the limit", func() {
				code, out := call("GET", "/api/people?limit=500", "ada", "")
				So(code, ShouldEqual, http.StatusForbidden)
				So(errorOf(out)["message"], ShouldContainSubstring, "500 results requested. Exceeds limit of 100.")
			})

			Convey("but not on repeated fields", func() {
				code, out := call("GET", "/api/people?tags=x", "ada", "")
				So(code, ShouldEqual, http.StatusBadRequest)
				So(errorOf(out)["message"], ShouldContainSubstring, "no queries on repeated values are allowed")
			})

			Convey("with valid page tokens only", func() {
				code, _ := call("GET", "/api/people?pageToken=garbage", "ada", "")
				So(code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("with unknown orders rejected", func() {
				code, out := call("GET", "/api/people?order=age", "ada", "")
				So(code, ShouldEqual, http.StatusBadRequest)
				So(errorOf(out)["message"], ShouldContainSubstring, `order attribute "age" not defined`)
			})
		})

		Convey("refuses bad field sets at build time", func() {
			_, err := Method(person, Options{RequestFields: protods.Fields("nope")}, nil)
			So(err, ShouldErrLike, `"nope" is not an accepted field`)
			_, err = QueryMethod(person, QueryOptions{}, nil)
			So(err, ShouldBeNil)
		})
	})
}
