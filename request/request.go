/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package request is the read-only request facade handlers see (spec.md
// §4.8): the parsed head, a deferred body reader, route parameters, and
// the query/header/json convenience accessors that never panic on
// malformed input.
package request

import (
	"encoding/json"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/sabouaram/httpkit/wire"
)

// BodyReader lets the handler pull the body on demand (deferred-body
// dispatch) instead of having it preloaded.
type BodyReader interface {
	io.Reader
	// ReadAll drains and returns the full body, honouring the parser's
	// chunked/length-delimited framing.
	ReadAll() ([]byte, error)
}

// Request is the immutable-head, mutable-params view passed to handlers.
type Request struct {
	head wire.Head
	body BodyReader

	params map[string]string
	groups []string

	authUser string
	authGrps map[string]struct{}

	query url.Values
}

func New(head wire.Head, body BodyReader) *Request {
	r := &Request{
		head:   head,
		body:   body,
		params: make(map[string]string),
	}

	if i := strings.IndexByte(head.URI, '?'); i >= 0 {
		r.query, _ = url.ParseQuery(head.URI[i+1:])
	} else {
		r.query = url.Values{}
	}

	return r
}

func (r *Request) Method() string  { return r.head.Method }
func (r *Request) URI() string     { return r.head.URI }
func (r *Request) Version() string { return r.head.Version }

func (r *Request) Path() string {
	if i := strings.IndexByte(r.head.URI, '?'); i >= 0 {
		return r.head.URI[:i]
	}
	return r.head.URI
}

// Query returns the query parameter k, or def if absent.
func (r *Request) Query(k string, def ...string) string {
	if v := r.query.Get(k); v != "" {
		return v
	}
	if len(def) > 0 {
		return def[0]
	}
	return ""
}

func (r *Request) Header(k string) (string, bool) {
	return r.head.Header(k)
}

func (r *Request) KeepAlive() bool       { return r.head.Persistent() }
func (r *Request) IsChunked() bool       { return r.head.IsChunked }
func (r *Request) IsUpgrade() bool       { return r.head.Upgrade }
func (r *Request) IsEventStream() bool   { return r.head.IsEventSSE }
func (r *Request) ContentLength() int64  { return r.head.ContentLen }

// Body returns the body reader the dispatcher attached: preloaded for a
// Content-Length body, read on demand for a chunked one, nil when the
// request has no body.
func (r *Request) Body() BodyReader { return r.body }

// JSON unmarshals the full body into v, returning false (never an error)
// on any read or decode failure -- spec.md requires json() to "never
// throw".
func (r *Request) JSON(v interface{}) bool {
	if r.body == nil {
		return false
	}
	b, err := r.body.ReadAll()
	if err != nil {
		return false
	}
	return json.Unmarshal(b, v) == nil
}

// Param returns a captured route-pattern group, e.g. ":id".
func (r *Request) Param(name string) string { return r.params[name] }

func (r *Request) SetParams(p map[string]string) { r.params = p }

func (r *Request) SetCapturedGroups(g []string) { r.groups = g }
func (r *Request) CapturedGroups() []string     { return r.groups }

func (r *Request) SetAuthUser(u string) { r.authUser = u }
func (r *Request) AuthUser() string     { return r.authUser }

func (r *Request) SetAuthGroups(groups []string) {
	r.authGrps = make(map[string]struct{}, len(groups))
	for _, g := range groups {
		r.authGrps[g] = struct{}{}
	}
}

func (r *Request) InGroup(g string) bool {
	_, ok := r.authGrps[g]
	return ok
}

// ContentLengthOr returns ContentLength, or def if the header was absent.
func (r *Request) ContentLengthOr(def int64) int64 {
	if !r.head.HasLength {
		return def
	}
	return r.head.ContentLen
}

// QueryInt parses a query parameter as an integer, returning def on any
// parse failure.
func (r *Request) QueryInt(k string, def int) int {
	v := r.Query(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
