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

// Package server implements the inbound connection state machine (spec.md
// §4.7): a read-loop task per accepted socket, a pipeline queue that
// serialises out-of-order response frames back into request order, and the
// three dispatch strategies (deferred body, pending body with a size
// check, no body).
package server

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/sabouaram/httpkit/transport"
)

type frameKind uint8

const (
	frameHead frameKind = iota
	frameBody
	frameChunk
	frameEnd
)

type frame struct {
	kind    frameKind
	status  int
	reason  string
	headers [][2]string
	payload []byte
}

// stream is one request/response pair on a pipelined connection. It
// implements response.Writer by pushing frames onto its queue; the
// connection's writer task drains queues in pipeline order, independently
// of how far the read loop has gotten on the next request.
type stream struct {
	id        uint64
	conn      *Connection
	queue     chan frame
	done      chan struct{}
	keepAlive bool

	// onDone fires exactly once, when this stream's response has finished
	// writing (or failed), with the resolved keep-alive decision.
	onDone func(keepAlive bool)
}

// setKeepAlive records the connection's keep-alive decision for this
// stream's response, consulted once writeLoop reaches the end frame.
func (s *stream) setKeepAlive(v bool) { s.keepAlive = v }

func newStream(id uint64, c *Connection) *stream {
	return &stream{
		id:    id,
		conn:  c,
		queue: make(chan frame, 8),
		done:  make(chan struct{}),
	}
}

func (s *stream) WriteHead(statusCode int, reason string, headers [][2]string) error {
	return s.push(frame{kind: frameHead, status: statusCode, reason: reason, headers: headers})
}

func (s *stream) WriteBody(b []byte) error {
	return s.push(frame{kind: frameBody, payload: b})
}

func (s *stream) WriteChunk(b []byte) error {
	return s.push(frame{kind: frameChunk, payload: b})
}

func (s *stream) EndChunked() error {
	return s.push(frame{kind: frameEnd, payload: []byte("0\r\n\r\n")})
}

func (s *stream) End() error {
	return s.push(frame{kind: frameEnd})
}

func (s *stream) push(f frame) error {
	select {
	case s.queue <- f:
		return nil
	case <-s.done:
		return fmt.Errorf("stream closed")
	}
}

func (s *stream) close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// writeLoop drains this stream's frame queue to sock under the connection's
// write mutex, resetting the idle timer after each successful write and
// reporting whether the connection should keep reading (keep-alive).
func (s *stream) writeLoop(ctx context.Context, sock transport.Socket, writeMu *sync.Mutex) (keepAlive bool, err error) {
	for {
		select {
		case f := <-s.queue:
			writeMu.Lock()
			werr := s.writeFrame(ctx, sock, f)
			writeMu.Unlock()

			if werr != nil {
				return false, werr
			}
			s.conn.resetIdle()

			if f.kind == frameEnd {
				return s.keepAlive, nil
			}
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func (s *stream) writeFrame(ctx context.Context, sock transport.Socket, f frame) error {
	switch f.kind {
	case frameHead:
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", f.status, f.reason)
		for _, h := range f.headers {
			fmt.Fprintf(&buf, "%s: %s\r\n", h[0], h[1])
		}
		buf.WriteString("\r\n")
		_, err := sock.Write(ctx, buf.Bytes())
		return err
	case frameBody:
		if len(f.payload) == 0 {
			return nil
		}
		_, err := sock.Write(ctx, f.payload)
		return err
	case frameChunk:
		chunk := fmt.Sprintf("%x\r\n", len(f.payload))
		if _, err := sock.Write(ctx, []byte(chunk)); err != nil {
			return err
		}
		if _, err := sock.Write(ctx, f.payload); err != nil {
			return err
		}
		_, err := sock.Write(ctx, []byte("\r\n"))
		return err
	case frameEnd:
		if len(f.payload) > 0 {
			_, err := sock.Write(ctx, f.payload)
			return err
		}
		return nil
	}
	return nil
}
