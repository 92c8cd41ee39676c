// Copyright 2024 Leon Chen

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tushare

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stockparfait/testutil"

	"github.com/leonchen2012/tushare/table"

	. "github.com/smartystreets/goconvey/convey"
)

func TestQuery(t *testing.T) {
	t.Parallel()

	Convey("QueryBuilder builds nondestructively", t, func() {
		c := New("testtoken")
		q := c.QueryBuilder("daily")

		Convey("AddParam merges, last write wins", func() {
			q2 := q.AddParam("ts_code", "000001.SZ")
			q3 := q2.AddParam("ts_code", "000002.SZ")
			So(q.params, ShouldBeNil)
			So(q2.params, ShouldResemble, map[string]string{"ts_code": "000001.SZ"})
			So(q3.params, ShouldResemble, map[string]string{"ts_code": "000002.SZ"})
		})

		Convey("Params replaces accumulated params wholesale", func() {
			q2 := q.AddParam("ts_code", "000001.SZ").AddParam("trade_date", "20240424")
			q3 := q2.Params(map[string]string{"start_date": "20240101"})
			So(q2.params, ShouldResemble, map[string]string{
				"ts_code": "000001.SZ", "trade_date": "20240424"})
			So(q3.params, ShouldResemble, map[string]string{"start_date": "20240101"})
		})

		Convey("Params copies the caller's map", func() {
			m := map[string]string{"k": "v"}
			q2 := q.Params(m)
			m["k"] = "changed"
			So(q2.params, ShouldResemble, map[string]string{"k": "v"})
		})

		Convey("Fields leaves the original intact", func() {
			q2 := q.Fields("open,close")
			So(q.fields, ShouldBeNil)
			So(*q2.fields, ShouldEqual, "open,close")
		})
	})

	Convey("Request envelope", t, func() {
		c := New("testtoken")

		marshal := func(q *QueryBuilder) interface{} {
			js, err := json.Marshal(q.buildRequest())
			So(err, ShouldBeNil)
			var decoded interface{}
			So(json.Unmarshal(js, &decoded), ShouldBeNil)
			return decoded
		}

		Convey("params and fields default to null", func() {
			So(marshal(c.QueryBuilder("daily")), ShouldResemble, testutil.JSON(`{
				"api_name": "daily",
				"token": "testtoken",
				"params": null,
				"fields": null}`))
		})

		Convey("params and fields are carried verbatim", func() {
			q := c.QueryBuilder("daily").
				AddParam("trade_date", "20240424").
				Fields("ts_code,open,close")
			So(marshal(q), ShouldResemble, testutil.JSON(`{
				"api_name": "daily",
				"token": "testtoken",
				"params": {"trade_date": "20240424"},
				"fields": "ts_code,open,close"}`))
		})
	})

	Convey("Execute", t, func() {
		server := testutil.NewTestServer()
		defer server.Close()
		URL = server.URL()
		ctx := UseHTTPClient(context.Background(), server.Client())
		c := New("testtoken")

		kindOf := func(err error) Kind {
			k, ok := KindOf(err)
			So(ok, ShouldBeTrue)
			return k
		}

		Convey("materializes a table from a well-formed response", func() {
			server.ResponseBody = []string{
				`{"code": 0, "msg": "", "data": {"fields": ["a", "b"], "items": [[1, 2], [3, 4]]}}`}
			tbl, err := c.QueryBuilder("daily").Execute(ctx)
			So(err, ShouldBeNil)
			So(tbl.Columns(), ShouldResemble, []table.Column{
				{Name: "a", Type: table.TypeInt},
				{Name: "b", Type: table.TypeInt},
			})
			So(tbl.NumRows(), ShouldEqual, 2)
			So(tbl.Row(0), ShouldResemble, []table.Value{int64(1), int64(2)})
			So(tbl.Row(1), ShouldResemble, []table.Value{int64(3), int64(4)})
			So(server.RequestPath, ShouldEqual, "/")
		})

		Convey("infers per-column types", func() {
			server.ResponseBody = []string{
				`{"code": 0, "data": {"fields": ["sym", "price"], "items": [["AAPL", 1.5], ["MSFT", 2]]}}`}
			tbl, err := c.QueryBuilder("daily").Execute(ctx)
			So(err, ShouldBeNil)
			So(tbl.Columns(), ShouldResemble, []table.Column{
				{Name: "price", Type: table.TypeFloat},
				{Name: "sym", Type: table.TypeString},
			})
		})

		Convey("a response without a code field is a success", func() {
			server.ResponseBody = []string{
				`{"data": {"fields": ["a"], "items": [[1]]}}`}
			tbl, err := c.QueryBuilder("daily").Execute(ctx)
			So(err, ShouldBeNil)
			So(tbl.NumRows(), ShouldEqual, 1)
		})

		Convey("short and long item rows zip to the shorter side", func() {
			server.ResponseBody = []string{
				`{"code": 0, "data": {"fields": ["a", "b"], "items": [[1, 2, 99], [3]]}}`}
			tbl, err := c.QueryBuilder("daily").Execute(ctx)
			So(err, ShouldBeNil)
			So(tbl.Columns(), ShouldResemble, []table.Column{
				{Name: "a", Type: table.TypeInt},
				{Name: "b", Type: table.TypeInt},
			})
			So(tbl.Row(0), ShouldResemble, []table.Value{int64(1), int64(2)})
			So(tbl.Row(1), ShouldResemble, []table.Value{int64(3), nil})
		})

		Convey("zero data rows surface as EmptyData", func() {
			server.ResponseBody = []string{
				`{"code": 0, "data": {"fields": ["a"], "items": []}}`}
			_, err := c.QueryBuilder("daily").Execute(ctx)
			So(kindOf(err), ShouldEqual, KindEmptyData)
		})

		Convey("a non-zero code surfaces as Request, verbatim", func() {
			server.ResponseBody = []string{`{"code": 18, "msg": "invalid token"}`}
			_, err := c.QueryBuilder("daily").Execute(ctx)
			So(kindOf(err), ShouldEqual, KindRequest)
			var e *Error
			So(stderrors.As(err, &e), ShouldBeTrue)
			So(e.Code, ShouldEqual, "18")
			So(e.Msg, ShouldEqual, "invalid token")
			So(err.Error(), ShouldEqual,
				"tushare request error: code 18, msg: invalid token")
		})

		malformedPath := func(err error) string {
			So(kindOf(err), ShouldEqual, KindMalformed)
			var e *Error
			So(stderrors.As(err, &e), ShouldBeTrue)
			return e.Path
		}

		Convey("a missing data/fields node surfaces as Malformed", func() {
			server.ResponseBody = []string{`{"code": 0, "msg": ""}`}
			_, err := c.QueryBuilder("daily").Execute(ctx)
			So(malformedPath(err), ShouldEqual, "data/fields")
		})

		Convey("a missing data/items node surfaces as Malformed", func() {
			server.ResponseBody = []string{`{"code": 0, "data": {"fields": ["a"]}}`}
			_, err := c.QueryBuilder("daily").Execute(ctx)
			So(malformedPath(err), ShouldEqual, "data/items")
		})

		Convey("a non-string field name names its index", func() {
			server.ResponseBody = []string{
				`{"code": 0, "data": {"fields": ["a", 5], "items": []}}`}
			_, err := c.QueryBuilder("daily").Execute(ctx)
			So(malformedPath(err), ShouldEqual, "data/fields at 1")
		})

		Convey("a non-array item names its index", func() {
			server.ResponseBody = []string{
				`{"code": 0, "data": {"fields": ["a"], "items": [[1], "x"]}}`}
			_, err := c.QueryBuilder("daily").Execute(ctx)
			So(malformedPath(err), ShouldEqual, "data/items/1")
		})

		Convey("an invalid JSON body surfaces as Decode", func() {
			server.ResponseBody = []string{"not json"}
			_, err := c.QueryBuilder("daily").Execute(ctx)
			So(kindOf(err), ShouldEqual, KindDecode)
		})

		Convey("inconsistent column types surface as Materialize", func() {
			server.ResponseBody = []string{
				`{"code": 0, "data": {"fields": ["a"], "items": [[1], ["x"]]}}`}
			_, err := c.QueryBuilder("daily").Execute(ctx)
			So(kindOf(err), ShouldEqual, KindMaterialize)
		})

		Convey("a transport failure surfaces as Network", func() {
			down := testutil.NewTestServer()
			URL = down.URL()
			down.Close()
			_, err := New("testtoken").QueryBuilder("daily").Execute(ctx)
			So(kindOf(err), ShouldEqual, KindNetwork)
		})

		Convey("a cancelled context surfaces as Network", func() {
			server.ResponseBody = []string{`{}`}
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := c.QueryBuilder("daily").Execute(cctx)
			So(kindOf(err), ShouldEqual, KindNetwork)
		})

		Convey("a non-2xx status surfaces as Network", func() {
			bad := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					http.Error(w, "backend down", http.StatusInternalServerError)
				}))
			defer bad.Close()
			URL = bad.URL
			bctx := UseHTTPClient(context.Background(), bad.Client())
			_, err := New("testtoken").QueryBuilder("daily").Execute(bctx)
			So(kindOf(err), ShouldEqual, KindNetwork)
		})
	})
}
