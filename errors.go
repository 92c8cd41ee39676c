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
	stderrors "errors"
	"fmt"
)

// Kind classifies the failures of QueryBuilder.Execute. The set is closed:
// every error returned by this package is an *Error carrying exactly one of
// these kinds.
type Kind int

const (
	// KindEmptyData - the server returned zero data rows. Column types cannot
	// be inferred from an empty row set, so this is an error rather than an
	// empty table.
	KindEmptyData Kind = iota
	// KindRequest - the server body carried an explicit non-zero status code.
	KindRequest
	// KindMalformed - an expected JSON node (data/fields, data/items, or an
	// index within either) is missing or of the wrong shape.
	KindMalformed
	// KindNetwork - transport failure or non-2xx HTTP status.
	KindNetwork
	// KindDecode - the response body is not valid JSON, or the request or row
	// set failed to encode.
	KindDecode
	// KindMaterialize - the reshaped rows could not be converted into a table.
	KindMaterialize
)

// String implements fmt.Stringer for Kind.
func (k Kind) String() string {
	switch k {
	case KindEmptyData:
		return "EmptyData"
	case KindRequest:
		return "Request"
	case KindMalformed:
		return "Malformed"
	case KindNetwork:
		return "Network"
	case KindDecode:
		return "Decode"
	case KindMaterialize:
		return "Materialize"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the error type returned by this package. Only the fields relevant
// to its Kind are set.
type Error struct {
	Kind Kind
	Path string // KindMalformed: the offending JSON path
	Code string // KindRequest: server status code, verbatim
	Msg  string // KindRequest: server message, verbatim
	Err  error  // KindNetwork, KindDecode, KindMaterialize: the cause
}

var _ error = &Error{}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindEmptyData:
		return "tushare returned empty data"
	case KindRequest:
		return fmt.Sprintf("tushare request error: code %s, msg: %s", e.Code, e.Msg)
	case KindMalformed:
		return fmt.Sprintf("expected JSON node %s does not exist", e.Path)
	case KindNetwork:
		return fmt.Sprintf("network error: %s", e.Err.Error())
	case KindDecode:
		return fmt.Sprintf("failed to decode JSON: %s", e.Err.Error())
	case KindMaterialize:
		return fmt.Sprintf("failed to convert rows into a table: %s", e.Err.Error())
	}
	return fmt.Sprintf("unknown error kind: %d", int(e.Kind))
}

// Unwrap returns the cause, if any, making the error compatible with
// errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind from an error returned by this package. The second
// value is false when err is not an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func emptyDataError() *Error { return &Error{Kind: KindEmptyData} }

func requestError(code, msg string) *Error {
	return &Error{Kind: KindRequest, Code: code, Msg: msg}
}

func malformedError(path string) *Error {
	return &Error{Kind: KindMalformed, Path: path}
}

func networkError(err error) *Error { return &Error{Kind: KindNetwork, Err: err} }

func decodeError(err error) *Error { return &Error{Kind: KindDecode, Err: err} }

func materializeError(err error) *Error {
	return &Error{Kind: KindMaterialize, Err: err}
}
