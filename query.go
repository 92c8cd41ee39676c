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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/leonchen2012/tushare/table"
)

// QueryBuilder accumulates the shape of a single request. Its builder methods
// always create a copy, leaving the original intact, so builders derived from
// the same client can be branched and reused freely.
type QueryBuilder struct {
	client  *Client
	apiName string            // server-defined dataset name, e.g. "daily"
	params  map[string]string // nil when not set
	fields  *string           // nil when not set
}

// copy creates a deep copy of the builder. It is primarily used in its
// builder methods.
func (q *QueryBuilder) copy() *QueryBuilder {
	q2 := QueryBuilder{client: q.client, apiName: q.apiName, fields: q.fields}
	if q.params != nil {
		q2.params = make(map[string]string, len(q.params))
		for k, v := range q.params {
			q2.params[k] = v
		}
	}
	return &q2
}

// Params replaces the request parameters wholesale, discarding any previously
// accumulated ones. Parameters are e.g. ts_code, trade_date, start_date,
// end_date; see https://tushare.pro/document/2 for the catalog. This step is
// optional: without parameters the server returns up to a few thousand rows.
func (q *QueryBuilder) Params(params map[string]string) *QueryBuilder {
	q2 := q.copy()
	q2.params = make(map[string]string, len(params))
	for k, v := range params {
		q2.params[k] = v
	}
	return q2
}

// AddParam merges a single key/value pair into the parameters; the new value
// wins on a key collision. A helper for Params when constructing a map is
// inconvenient.
func (q *QueryBuilder) AddParam(key, value string) *QueryBuilder {
	q2 := q.copy()
	if q2.params == nil {
		q2.params = make(map[string]string, 1)
	}
	q2.params[key] = value
	return q2
}

// Fields restricts the returned columns to the given comma-separated list,
// e.g. "ts_code,trade_date,open,close". The list is not validated against the
// server schema. Optional; without it the server returns all columns.
func (q *QueryBuilder) Fields(fields string) *QueryBuilder {
	q2 := q.copy()
	q2.fields = &fields
	return q2
}

// request is the JSON envelope POSTed to the server. Unset params and fields
// are serialized as JSON null.
type request struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  *string           `json:"fields"`
}

// buildRequest assembles the envelope from the builder state.
func (q *QueryBuilder) buildRequest() request {
	return request{
		APIName: q.apiName,
		Token:   q.client.token,
		Params:  q.params,
		Fields:  q.fields,
	}
}

// reshape zips the field names against each item row positionally, turning
// the columnar (fields, items) representation into a sequence of row objects.
// The zip is shortest-side: values beyond the number of field names are
// silently dropped, and a short row simply leaves the trailing fields unset.
func reshape(fields []string, items []interface{}) ([]map[string]interface{}, error) {
	rows := make([]map[string]interface{}, len(items))
	for i, it := range items {
		item, ok := it.([]interface{})
		if !ok {
			return nil, malformedError(fmt.Sprintf("data/items/%d", i))
		}
		row := make(map[string]interface{}, len(fields))
		for j, name := range fields {
			if j >= len(item) {
				break
			}
			row[name] = item[j]
		}
		rows[i] = row
	}
	return rows, nil
}

// parseResponse validates the response envelope and extracts the reshaped
// rows. A present non-zero code is a server-side rejection and is passed
// through verbatim; an absent code is treated as success.
func parseResponse(body []byte) ([]map[string]interface{}, error) {
	var root interface{}
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, decodeError(err)
	}
	obj, _ := root.(map[string]interface{})
	if code, ok := obj["code"].(float64); ok && code != 0 {
		msg, ok := obj["msg"].(string)
		if !ok {
			msg = "unknown"
		}
		return nil, requestError(strconv.FormatFloat(code, 'f', -1, 64), msg)
	}
	data, _ := obj["data"].(map[string]interface{})
	rawFields, ok := data["fields"].([]interface{})
	if !ok {
		return nil, malformedError("data/fields")
	}
	fields := make([]string, len(rawFields))
	for i, f := range rawFields {
		s, ok := f.(string)
		if !ok {
			return nil, malformedError(fmt.Sprintf("data/fields at %d", i))
		}
		fields[i] = s
	}
	items, ok := data["items"].([]interface{})
	if !ok {
		return nil, malformedError("data/items")
	}
	return reshape(fields, items)
}

// Execute performs the query: a single synchronous round trip with no retries
// and no caching. The raw request and response bodies are traced at the debug
// level of the logger installed in the context, if any.
//
// Every failure is returned as an *Error; see Kind for the taxonomy.
func (q *QueryBuilder) Execute(ctx context.Context) (*table.Table, error) {
	body, err := json.Marshal(q.buildRequest())
	if err != nil {
		return nil, decodeError(errors.Annotate(err, "failed to encode request"))
	}
	logging.Debugf(ctx, "tushare request: %s", body)
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, q.client.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, networkError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient(ctx).Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, networkError(errors.Reason("HTTP %s", resp.Status))
	}
	logging.Debugf(ctx, "tushare response: %s", respBody)

	rows, err := parseResponse(respBody)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, emptyDataError()
	}
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return nil, decodeError(errors.Annotate(err, "failed to encode rows"))
	}
	t, err := table.FromJSON(rowsJSON)
	if err != nil {
		return nil, materializeError(err)
	}
	return t, nil
}
