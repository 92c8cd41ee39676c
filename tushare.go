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

// Package tushare is a client for the Tushare Pro web API,
// http://api.tushare.pro. A query is assembled with an immutable builder and
// executed as a single synchronous POST; the columnar JSON response is
// reshaped and materialized into a typed table.
//
// A typical use:
//
//	c := tushare.New("<your token>")
//	t, err := c.QueryBuilder("daily").
//		AddParam("ts_code", "000001.SZ").
//		AddParam("trade_date", "20240424").
//		Fields("ts_code,trade_date,open,high,low,close").
//		Execute(ctx)
//
// Dates must be in YYYYMMDD format; other formats make the server return
// empty data, which surfaces as an error of KindEmptyData.
package tushare

import (
	"context"
	"net/http"
)

type contextKey int

const (
	httpClientContextKey contextKey = iota
)

// URL is the default endpoint of the Tushare Pro server. It may be
// overwritten in tests before creating a new client.
var URL = "http://api.tushare.pro"

// Client holds the access token and the endpoint URL, and spawns query
// builders. It is immutable after construction and safe to share.
type Client struct {
	token    string // access token, sent in every request body
	endpoint string // the fixed URL of the server
}

// New creates a new client for the given access token. The token format is
// not validated; a bad token surfaces as a server error on Execute.
func New(token string) *Client {
	return &Client{token: token, endpoint: URL}
}

// QueryBuilder creates a fresh builder for the named API, with no parameters
// and no field restriction.
func (c *Client) QueryBuilder(apiName string) *QueryBuilder {
	return &QueryBuilder{client: c, apiName: apiName}
}

// UseHTTPClient injects an HTTP client into the context, to be used by
// Execute. When absent, http.DefaultClient is used.
func UseHTTPClient(ctx context.Context, client *http.Client) context.Context {
	return context.WithValue(ctx, httpClientContextKey, client)
}

// httpClient extracts the HTTP client from the context, if any.
func httpClient(ctx context.Context) *http.Client {
	c, ok := ctx.Value(httpClientContextKey).(*http.Client)
	if !ok {
		return http.DefaultClient
	}
	return c
}
