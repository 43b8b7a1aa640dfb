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

package client

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sabouaram/httpkit/clientpool"
	"github.com/sabouaram/httpkit/cookie"
	liberr "github.com/sabouaram/httpkit/errors"
	liblog "github.com/sabouaram/httpkit/logger"
	"github.com/sabouaram/httpkit/wire"
)

const maxRedirects = 10

// Result is a completed exchange: the parsed head, the (possibly
// decompressed) body, and the chain of URLs visited while following
// redirects.
type Result struct {
	Head  wire.Head
	Body  []byte
	Chain []string
}

func (r Result) StatusCode() int { return r.Head.StatusCode }

func (r Result) Header(name string) (string, bool) { return r.Head.Header(name) }

// Engine is the C12 request surface: it follows redirects, carries
// cookies across a chain, negotiates compression, and exposes both a
// blocking Do and a channel-based DoAsync built on the same connection.
type Engine struct {
	conn    *connection
	jar     *cookie.Jar
	tlsCfg  *tls.Config
	timeout time.Duration
	log     liblog.FuncLog

	followRedirects bool
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

func WithJar(j *cookie.Jar) EngineOption { return func(e *Engine) { e.jar = j } }

func WithTLSConfig(c *tls.Config) EngineOption { return func(e *Engine) { e.tlsCfg = c } }

func WithTimeout(d time.Duration) EngineOption { return func(e *Engine) { e.timeout = d } }

func WithRetries(n int) EngineOption {
	return func(e *Engine) {
		if e.conn != nil {
			e.conn.retries = n
		}
	}
}

func WithoutRedirects() EngineOption { return func(e *Engine) { e.followRedirects = false } }

func WithLogger(l liblog.FuncLog) EngineOption { return func(e *Engine) { e.log = l } }

// New builds an Engine backed by pool, dialing sockets via dial (use
// DefaultDial unless a DNS override is needed).
func New(pool *clientpool.Pool, dial dialFunc, opts ...EngineOption) *Engine {
	e := &Engine{
		conn:            newConnection(pool, dial, 2, nil),
		jar:             cookie.NewJar(),
		timeout:         30 * time.Second,
		followRedirects: true,
	}
	for _, o := range opts {
		o(e)
	}
	e.conn.log = e.log
	return e
}

func (e *Engine) logger() liblog.Logger { return liblog.OrDiscard(e.log) }

// Request describes one call before redirect-following is applied.
type Request struct {
	Method  string
	URL     string
	Headers [][2]string
	Body    []byte

	// Form, when non-nil, is url-encoded and sent as
	// application/x-www-form-urlencoded, overriding Body.
	Form url.Values
}

func (r *Request) resolveBody() ([]byte, string) {
	if r.Form != nil {
		return []byte(r.Form.Encode()), "application/x-www-form-urlencoded"
	}
	return r.Body, ""
}

// Do performs req, following redirects (unless disabled) and replaying
// cookies from the jar at every hop.
func (e *Engine) Do(ctx context.Context, req Request) (*Result, error) {
	chain := make([]string, 0, 4)
	current := req

	for redirect := 0; ; redirect++ {
		if redirect > maxRedirects {
			return nil, liberr.ProtocolViolation.Error()
		}

		u, err := url.Parse(current.URL)
		if err != nil {
			return nil, liberr.ParseError.ErrorParent(err)
		}
		chain = append(chain, u.String())

		resp, err := e.doOnce(ctx, u, current)
		if err != nil {
			return nil, err
		}

		if e.followRedirects && isRedirect(resp.head.StatusCode) {
			loc, ok := resp.head.Header("Location")
			if !ok {
				return e.finish(resp, chain), nil
			}
			next, err := u.Parse(loc)
			if err != nil {
				return nil, liberr.ParseError.ErrorParent(err)
			}
			current = redirectRequest(current, u, next, resp.head.StatusCode)
			continue
		}

		return e.finish(resp, chain), nil
	}
}

func redirectMethod(method string, status int) string {
	// 303 always downgrades to GET. 301/302 downgrade POST, PUT, and DELETE
	// to GET for compatibility with legacy servers, matching net/http's
	// behaviour; 307/308 always preserve the method and body.
	if status == http.StatusSeeOther {
		return http.MethodGet
	}
	if status == http.StatusMovedPermanently || status == http.StatusFound {
		switch method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			return http.MethodGet
		}
	}
	return method
}

// sameOrigin reports whether a and b share a scheme and host, the
// condition under which it's safe to replay an Authorization header
// across a redirect hop.
func sameOrigin(a, b *url.URL) bool {
	return a.Scheme == b.Scheme && a.Host == b.Host
}

// redirectRequest builds the request for the next hop. Headers, Body, and
// Form carry forward by default; Authorization is dropped when the
// redirect crosses origins, and Body/Form are cleared when the method is
// downgraded to GET (301/302/303), since a GET can't carry the old body.
func redirectRequest(prev Request, prevURL, nextURL *url.URL, status int) Request {
	method := redirectMethod(prev.Method, status)
	downgraded := method != prev.Method

	headers := make([][2]string, 0, len(prev.Headers))
	for _, h := range prev.Headers {
		if strings.EqualFold(h[0], "Authorization") && !sameOrigin(prevURL, nextURL) {
			continue
		}
		headers = append(headers, h)
	}

	next := Request{Method: method, URL: nextURL.String(), Headers: headers}
	if !downgraded {
		next.Body = prev.Body
		next.Form = prev.Form
	}
	return next
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

type rawResponse struct {
	head wire.Head
	body []byte
}

func (e *Engine) finish(resp *rawResponse, chain []string) *Result {
	return &Result{Head: resp.head, Body: resp.body, Chain: chain}
}

func (e *Engine) doOnce(ctx context.Context, u *url.URL, req Request) (*rawResponse, error) {
	key := clientpool.Key{Host: u.Hostname(), SSL: u.Scheme == "https"}
	key.Port = portOf(u)

	headers := append([][2]string{}, req.Headers...)
	body, formCT := req.resolveBody()
	if formCT != "" {
		headers = append(headers, [2]string{"Content-Type", formCT})
	}

	for _, c := range e.jar.Cookies(u) {
		headers = append(headers, [2]string{"Cookie", c.Name + "=" + c.Value})
	}
	headers = append(headers, [2]string{"Accept-Encoding", "gzip, deflate"})
	if !hasHeader(headers, "Connection") {
		headers = append(headers, [2]string{"Connection", "keep-alive"})
	}

	target := u.RequestURI()
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	reqBytes := buildRequestLine(method, target, u.Host, headers, body, false)

	opts := []wire.Option{}
	if method == http.MethodHead {
		opts = append(opts, wire.WithHeadRequest())
	}

	parser, err := e.conn.exchange(ctx, key, e.tlsCfg, e.timeout, reqBytes, opts...)
	if err != nil {
		return nil, err
	}

	head := parser.Head()
	if setCookie, ok := head.Header("Set-Cookie"); ok {
		resp := &http.Response{Header: http.Header{"Set-Cookie": {setCookie}}}
		e.jar.SetCookies(u, resp.Cookies())
	}

	return &rawResponse{head: head, body: parser.Body()}, nil
}

func hasHeader(headers [][2]string, name string) bool {
	for _, h := range headers {
		if strings.EqualFold(h[0], name) {
			return true
		}
	}
	return false
}

func portOf(u *url.URL) int {
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}
	if u.Scheme == "https" {
		return 443
	}
	return 80
}

// AsyncResult is delivered on the channel returned by DoAsync.
type AsyncResult struct {
	Result *Result
	Err    error
}

// DoAsync runs Do on its own goroutine and delivers the outcome on the
// returned channel, the sync/async surface split spec.md's client engine
// calls for alongside the blocking Do.
func (e *Engine) DoAsync(ctx context.Context, req Request) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	go func() {
		defer close(ch)
		res, err := e.Do(ctx, req)
		ch <- AsyncResult{Result: res, Err: err}
	}()
	return ch
}

// DoAll fires every request concurrently and returns once all have
// completed, preserving input order in the result slice.
func (e *Engine) DoAll(ctx context.Context, reqs []Request) []AsyncResult {
	out := make([]AsyncResult, len(reqs))
	var wg sync.WaitGroup
	wg.Add(len(reqs))
	for i, r := range reqs {
		go func(i int, r Request) {
			defer wg.Done()
			res, err := e.Do(ctx, r)
			out[i] = AsyncResult{Result: res, Err: err}
		}(i, r)
	}
	wg.Wait()
	return out
}
