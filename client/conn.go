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

// Package client implements the client-side connection (C11) and engine
// (C12): per-call timeout and retry on one socket, and redirect-following,
// cookie, form, and sync/async request surfaces on top of it.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/sabouaram/httpkit/clientpool"
	liberr "github.com/sabouaram/httpkit/errors"
	liblog "github.com/sabouaram/httpkit/logger"
	"github.com/sabouaram/httpkit/transport"
	"github.com/sabouaram/httpkit/wire"
)

// dialFunc opens a socket for key, plain or TLS depending on key.SSL.
type dialFunc func(ctx context.Context, key clientpool.Key, timeout time.Duration, tlsCfg *tls.Config) (transport.Socket, error)

// connection owns one outbound socket: it performs the request/response
// exchange with a per-call timeout and a small bounded retry count, the
// C11 responsibility spec.md separates from the engine's redirect/cookie
// policy (C12).
type connection struct {
	log     liblog.FuncLog
	dial    dialFunc
	pool    *clientpool.Pool
	retries int
}

func newConnection(pool *clientpool.Pool, dial dialFunc, retries int, log liblog.FuncLog) *connection {
	if retries < 0 {
		retries = 0
	}
	return &connection{log: log, dial: dial, pool: pool, retries: retries}
}

func (c *connection) logger() liblog.Logger { return liblog.OrDiscard(c.log) }

// exchange performs one request/response round-trip, reusing a pooled
// socket when available and retrying any failed attempt up to c.retries
// times; every attempt, pooled or freshly dialled, counts against that budget.
func (c *connection) exchange(ctx context.Context, key clientpool.Key, tlsCfg *tls.Config, timeout time.Duration, reqBytes []byte, opts ...wire.Option) (*wire.ResponseParser, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		sock, fromPool, err := c.acquire(ctx, key, tlsCfg, timeout)
		if err != nil {
			lastErr = err
			continue
		}

		resp, err := c.roundTrip(ctx, sock, timeout, reqBytes, opts...)
		if err != nil {
			_ = sock.Close()
			lastErr = err
			if fromPool {
				// a dead pooled connection is retried like any other
				// failure; the attempt counts against c.retries.
				continue
			}
			continue
		}

		if resp.Head().Persistent() {
			c.pool.Put(key, sock)
		} else {
			_ = sock.Close()
		}

		return resp, nil
	}

	if lastErr == nil {
		lastErr = liberr.IOError.Error()
	}
	return nil, lastErr
}

func (c *connection) acquire(ctx context.Context, key clientpool.Key, tlsCfg *tls.Config, timeout time.Duration) (transport.Socket, bool, error) {
	if sock, ok := c.pool.Get(key); ok {
		return sock, true, nil
	}

	sock, err := c.dial(ctx, key, timeout, tlsCfg)
	if err != nil {
		return nil, false, err
	}
	return sock, false, nil
}

func (c *connection) roundTrip(ctx context.Context, sock transport.Socket, timeout time.Duration, reqBytes []byte, opts ...wire.Option) (*wire.ResponseParser, error) {
	rctx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		rctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if _, err := sock.Write(rctx, reqBytes); err != nil {
		return nil, liberr.IOError.ErrorParent(err)
	}

	parser := wire.NewResponseParser(opts...)
	buf := make([]byte, 8*1024)

	for {
		n, err := sock.ReadSome(rctx, buf)
		if n > 0 {
			status, _, perr := parser.Feed(buf[:n])
			if perr != nil {
				return nil, perr
			}
			if status == wire.Complete {
				return parser, nil
			}
		}
		if err != nil {
			return nil, liberr.IOError.ErrorParent(err)
		}
	}
}

// DefaultDial connects plain TCP/TLS sockets directly, with no DNS
// override, honouring clientpool.Key's UnixPath for domain sockets.
func DefaultDial(ctx context.Context, key clientpool.Key, timeout time.Duration, tlsCfg *tls.Config) (transport.Socket, error) {
	if key.UnixPath != "" {
		return transport.Dial(ctx, "unix", key.UnixPath, timeout)
	}

	addr := fmt.Sprintf("%s:%d", key.Host, key.Port)
	if key.SSL {
		return transport.DialTLS(ctx, "tcp", addr, tlsCfg, key.Host, timeout)
	}
	return transport.Dial(ctx, "tcp", addr, timeout)
}

// buildRequestLine renders the request-line + headers for req, honouring
// any body already buffered on it.
func buildRequestLine(method, target, host string, headers [][2]string, body []byte, chunked bool) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s HTTP/1.1\r\n", method, target)
	fmt.Fprintf(&buf, "Host: %s\r\n", host)

	hasLength := false
	for _, h := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h[0], h[1])
		if h[0] == "Content-Length" {
			hasLength = true
		}
	}

	if !hasLength && !chunked && len(body) > 0 {
		fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(body))
	}

	buf.WriteString("\r\n")
	if !chunked {
		buf.Write(body)
	}
	return buf.Bytes()
}
