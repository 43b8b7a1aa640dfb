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

// Package router dispatches parsed requests to handlers by method and
// path pattern (spec.md §4.7's "route matched" step): ":name" and
// ":name(regex)" segments, a registered-method-aware 404/405 fallback, and
// a blanket CORS OPTIONS responder, mirroring the Register/Handler idiom
// of the teacher's gin-backed RouterList generalized away from gin.
package router

import (
	"regexp"
	"strings"

	"github.com/sabouaram/httpkit/request"
	"github.com/sabouaram/httpkit/response"
)

// Handler processes one matched request.
type Handler func(req *request.Request, res *response.Response)

type segment struct {
	literal string
	isParam bool
	name    string
	re      *regexp.Regexp
}

type route struct {
	method   string
	pattern  string
	segments []segment
	handler  Handler
}

// Router is the method+path dispatcher. The zero value is not usable; use
// New.
type Router struct {
	routes   []route
	fallback Handler
	cors     bool
}

func New() *Router {
	return &Router{}
}

// EnableCORS turns on the blanket-OPTIONS preflight responder.
func (r *Router) EnableCORS() *Router {
	r.cors = true
	return r
}

// Fallback installs the handler used when no route matches the request,
// whether no path matched or the path matched only under other methods.
func (r *Router) Fallback(h Handler) *Router {
	r.fallback = h
	return r
}

// Register adds one route. path segments starting with ":" are captured;
// ":name(regex)" additionally constrains the segment to match regex.
func (r *Router) Register(method, path string, h Handler) {
	r.routes = append(r.routes, route{
		method:   strings.ToUpper(method),
		pattern:  path,
		segments: compilePath(path),
		handler:  h,
	})
}

func compilePath(path string) []segment {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	segs := make([]segment, 0, len(parts))

	for _, p := range parts {
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, ":") {
			name := p[1:]
			var re *regexp.Regexp
			if i := strings.IndexByte(name, '('); i >= 0 && strings.HasSuffix(name, ")") {
				pattern := name[i+1 : len(name)-1]
				name = name[:i]
				if compiled, err := regexp.Compile("^" + pattern + "$"); err == nil {
					re = compiled
				}
			}
			segs = append(segs, segment{isParam: true, name: name, re: re})
		} else {
			segs = append(segs, segment{literal: p})
		}
	}

	return segs
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Dispatch finds the best-matching route for method+path. If a path
// matches but no route registers that method, matchedPath reports true so
// the caller can reply 405 instead of 404.
func (r *Router) Dispatch(method, path string) (h Handler, params map[string]string, matchedPath bool) {
	parts := splitPath(path)
	method = strings.ToUpper(method)

	for _, rt := range r.routes {
		p, ok := match(rt.segments, parts)
		if !ok {
			continue
		}
		matchedPath = true
		if rt.method == method {
			return rt.handler, p, true
		}
	}

	if r.cors && method == "OPTIONS" {
		return func(_ *request.Request, res *response.Response) {
			res.Header("Access-Control-Allow-Origin", "*").
				Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS").
				Header("Access-Control-Allow-Headers", "*").
				Status(204, "No Content").
				Send()
		}, nil, true
	}

	return r.fallback, nil, matchedPath
}

func match(segs []segment, parts []string) (map[string]string, bool) {
	if len(segs) != len(parts) {
		return nil, false
	}

	params := make(map[string]string)
	for i, s := range segs {
		if s.isParam {
			if s.re != nil && !s.re.MatchString(parts[i]) {
				return nil, false
			}
			params[s.name] = parts[i]
			continue
		}
		if s.literal != parts[i] {
			return nil, false
		}
	}

	return params, true
}
