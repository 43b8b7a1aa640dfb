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

package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	liblog "github.com/sabouaram/httpkit/logger"
	"github.com/sabouaram/httpkit/request"
	"github.com/sabouaram/httpkit/response"
	"github.com/sabouaram/httpkit/router"
	"github.com/sabouaram/httpkit/transport"
	"github.com/sabouaram/httpkit/wire"
)

const readBufferSize = 8 * 1024

// Config configures one Connection.
type Config struct {
	Router         *router.Router
	MaxBodySize    int64 // default 8 MiB; 0 means use default
	IdleTimeout    time.Duration
	AcceptEncoding bool // not read by Connection; responses are compressed only via Response.Compress
}

// Connection owns one inbound socket end to end: the read loop, the
// pipeline of in-flight responses, and the idle timer (spec.md §4.7).
type Connection struct {
	sock transport.Socket
	cfg  Config
	log  liblog.FuncLog

	pipeline *pipeline
	streamID uint64

	idleMu    sync.Mutex
	idleTimer *time.Timer

	released atomic.Bool
	alive    atomic.Bool
}

func NewConnection(sock transport.Socket, cfg Config, log liblog.FuncLog) *Connection {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 8 * 1024 * 1024
	}
	return &Connection{
		sock:     sock,
		cfg:      cfg,
		log:      log,
		pipeline: newPipeline(),
	}
}

func (c *Connection) logger() liblog.Logger { return liblog.OrDiscard(c.log) }

func (c *Connection) resetIdle() {
	c.idleMu.Lock()
	defer c.idleMu.Unlock()
	if c.idleTimer != nil {
		c.idleTimer.Reset(c.cfg.IdleTimeout)
	}
}

// Start runs the read-loop until the connection is closed, upgraded away,
// or a non-keep-alive response completes.
func (c *Connection) Start(ctx context.Context) error {
	c.alive.Store(true)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.cfg.IdleTimeout > 0 {
		c.idleMu.Lock()
		c.idleTimer = time.AfterFunc(c.cfg.IdleTimeout, func() {
			c.logger().Debug("connection idle timeout")
			cancel()
			_ = c.sock.Close()
		})
		c.idleMu.Unlock()
	}

	var tail []byte

	for !c.released.Load() {
		parser := wire.NewRequestParser()

		head, rest, err := c.readHead(ctx, parser, tail)
		if err != nil {
			c.pipeline.Wait()
			return err
		}
		tail = nil

		if head == nil {
			// parser signalled a bad request; a 400 stream was already
			// enqueued by readHead.
			break
		}

		s := newStream(atomic.AddUint64(&c.streamID, 1), c)
		s.setKeepAlive(head.Persistent())

		stopped := make(chan struct{})
		s.onDone = func(ok bool) {
			if !ok {
				c.released.Store(true)
			}
			close(stopped)
		}
		c.pipeline.enqueue(ctx, c.sock, s)

		// dispatch runs synchronously and may downgrade s.keepAlive (e.g. a
		// 413 or an unmatched route); readHead for the next request starts
		// immediately afterward regardless of whether this stream's
		// response has finished writing -- responses still leave the wire
		// in request order because the pipeline serialises the writes.
		consumedTail := c.dispatch(ctx, *head, rest, s)
		tail = consumedTail

		if !s.keepAlive {
			<-stopped
			break
		}
	}

	c.pipeline.Wait()
	return nil
}

// readHead feeds buffered socket reads into parser until the head is
// complete, returning the parsed Head and any read-ahead tail bytes the
// caller did not consume.
func (c *Connection) readHead(ctx context.Context, parser *wire.RequestParser, seed []byte) (*wire.Head, []byte, error) {
	buf := make([]byte, readBufferSize)
	pending := append([]byte{}, seed...)

	for {
		if len(pending) > 0 {
			status, n, err := parser.Feed(pending)
			if err != nil {
				c.enqueueError(ctx, 400, "Bad Request")
				return nil, nil, nil
			}
			if status == wire.Complete {
				head := parser.Head()
				return &head, pending[n:], nil
			}
			pending = nil
		}

		n, err := c.sock.ReadSome(ctx, buf)
		if err != nil {
			return nil, nil, err
		}

		status, consumed, perr := parser.Feed(buf[:n])
		if perr != nil {
			c.enqueueError(ctx, 400, "Bad Request")
			return nil, nil, nil
		}
		if status == wire.Complete {
			head := parser.Head()
			return &head, buf[consumed:n], nil
		}
	}
}

func (c *Connection) enqueueError(ctx context.Context, code int, reason string) {
	s := newStream(atomic.AddUint64(&c.streamID, 1), c)
	s.setKeepAlive(false)
	done := make(chan struct{})
	s.onDone = func(bool) { close(done) }
	c.pipeline.enqueue(ctx, c.sock, s)

	res := response.New(s)
	res.Status(code, reason).Header("Connection", "close").WriteString(reason)
	_ = res.Send()
	<-done
}

// dispatch matches the route and applies one of the three body strategies
// spec.md §4.7 names, returning whatever read-ahead tail the handler did
// not consume.
func (c *Connection) dispatch(ctx context.Context, head wire.Head, tail []byte, s *stream) []byte {
	path := head.URI
	if i := indexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	handler, params, matchedPath := c.cfg.Router.Dispatch(head.Method, path)

	if handler == nil {
		code, reason := 404, "Not Found"
		if matchedPath {
			code, reason = 405, "Method Not Allowed"
		}
		res := response.New(s)
		res.Status(code, reason).Header("Connection", keepAliveHeader(head)).WriteString(reason)
		s.setKeepAlive(head.Persistent())
		_ = res.Send()
		return tail
	}

	maxBody := c.cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = 8 * 1024 * 1024
	}

	if head.IsChunked {
		// deferred body: the handler reads the upload itself.
		body := newRequestBody(ctx, c.sock, tail, true, 0)
		req := request.New(head, body)
		req.SetParams(params)
		res := response.New(s)
		res.Header("Connection", keepAliveHeader(head))
		s.setKeepAlive(head.Persistent())
		handler(req, res)
		return nil
	}

	if head.HasLength && head.ContentLen > 0 {
		if head.ContentLen > maxBody {
			res := response.New(s)
			res.Status(413, "Payload Too Large").Header("Connection", "close")
			s.setKeepAlive(false)
			_ = res.Send()
			// drain nothing further; connection will close.
			return nil
		}

		body := newRequestBody(ctx, c.sock, tail, false, head.ContentLen)
		preloaded, _ := body.ReadAll()
		req := request.New(head, &preloadedBody{data: preloaded})
		req.SetParams(params)
		res := response.New(s)
		res.Header("Connection", keepAliveHeader(head))
		s.setKeepAlive(head.Persistent())
		handler(req, res)
		return nil
	}

	// no body.
	req := request.New(head, nil)
	req.SetParams(params)
	res := response.New(s)
	res.Header("Connection", keepAliveHeader(head))
	s.setKeepAlive(head.Persistent())
	handler(req, res)
	return tail
}

func keepAliveHeader(head wire.Head) string {
	if head.Persistent() {
		return "keep-alive"
	}
	return "close"
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// ReleaseSocket stops the read loop and returns the raw socket for
// handover to a WebSocket session or SSE writer (spec.md's
// release_socket). After this call the Connection must not be used again.
func (c *Connection) ReleaseSocket() transport.Socket {
	c.released.Store(true)
	c.idleMu.Lock()
	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}
	c.idleMu.Unlock()
	c.sock.Cancel()
	return c.sock
}
