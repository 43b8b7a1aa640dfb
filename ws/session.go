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

package ws

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	liberr "github.com/sabouaram/httpkit/errors"
	liblog "github.com/sabouaram/httpkit/logger"
	"github.com/sabouaram/httpkit/transport"
)

// closeAckWait bounds how long Close waits for the peer's close-frame
// acknowledgement before giving up and tearing down the transport anyway.
const closeAckWait = 5 * time.Second

// closePayload renders a close frame's 2-byte status code plus reason body.
func closePayload(code uint16, reason string) []byte {
	payload := make([]byte, 2+len(reason))
	payload[0] = byte(code >> 8)
	payload[1] = byte(code)
	copy(payload[2:], reason)
	return payload
}

const magicGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey computes Sec-WebSocket-Accept from the client's
// Sec-WebSocket-Key header value.
func AcceptKey(clientKey string) string {
	h := sha1.New()
	h.Write([]byte(clientKey))
	h.Write([]byte(magicGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// GenerateClientKey produces a random 16-byte, base64-encoded
// Sec-WebSocket-Key for the client-side handshake.
func GenerateClientKey() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", liberr.IOError.ErrorParent(err)
	}
	return base64.StdEncoding.EncodeToString(b[:]), nil
}

// MessageHandler processes one reassembled text/binary message.
type MessageHandler func(opcode Opcode, payload []byte)

// Session drives one established WebSocket connection's frame loop:
// fragment reassembly, ping/pong liveness, and the close handshake.
type Session struct {
	sock      transport.Socket
	isServer  bool // server frames are never masked; client frames always are
	log       liblog.FuncLog
	pingEvery time.Duration

	writeMu sync.Mutex
	closed  bool

	pingMu      sync.Mutex
	pingPending bool
}

func NewSession(sock transport.Socket, isServer bool, pingEvery time.Duration, log liblog.FuncLog) *Session {
	return &Session{sock: sock, isServer: isServer, pingEvery: pingEvery, log: log}
}

func (s *Session) logger() liblog.Logger { return liblog.OrDiscard(s.log) }

// Run reads frames until a close frame completes the handshake or ctx is
// cancelled, invoking onMessage for each reassembled text/binary message.
func (s *Session) Run(ctx context.Context, onMessage MessageHandler) error {
	if s.pingEvery > 0 {
		go s.pingLoop(ctx)
	}

	var fragBuf bytes.Buffer
	var fragOp Opcode
	fragmenting := false

	r := socketReader{ctx: ctx, sock: s.sock}

	for {
		f, err := ReadFrame(r)
		if err != nil {
			return err
		}

		// RFC 6455 §5.1: masking is mandatory client-to-server and
		// forbidden server-to-client, for every frame type including
		// control frames.
		if f.Masked != s.isServer {
			_ = s.writeControl(ctx, OpClose, closePayload(1002, "invalid masking"))
			s.closed = true
			return liberr.ProtocolViolation.Error()
		}

		switch f.Opcode {
		case OpPing:
			if err := s.writeControl(ctx, OpPong, f.Payload); err != nil {
				return err
			}
			continue
		case OpPong:
			s.pingMu.Lock()
			s.pingPending = false
			s.pingMu.Unlock()
			continue
		case OpClose:
			_ = s.writeControl(ctx, OpClose, f.Payload)
			s.closed = true
			return nil
		}

		if !f.Fin {
			if !fragmenting {
				fragOp = f.Opcode
				fragmenting = true
			}
			fragBuf.Write(f.Payload)
			continue
		}

		if fragmenting {
			fragBuf.Write(f.Payload)
			msg := fragBuf.Bytes()
			op := fragOp
			fragBuf.Reset()
			fragmenting = false

			if op == OpText && !utf8.Valid(msg) {
				_ = s.writeControl(ctx, OpClose, closePayload(1007, "invalid utf-8"))
				s.closed = true
				return liberr.ProtocolViolation.Error()
			}
			onMessage(op, msg)
			continue
		}

		if f.Opcode == OpText && !utf8.Valid(f.Payload) {
			_ = s.writeControl(ctx, OpClose, closePayload(1007, "invalid utf-8"))
			s.closed = true
			return liberr.ProtocolViolation.Error()
		}

		onMessage(f.Opcode, f.Payload)
	}
}

// pingLoop sends a liveness ping every pingEvery interval; if a second tick
// fires with no pong having arrived since the previous ping, the peer is
// presumed dead and the socket is closed to unblock Run's read loop.
func (s *Session) pingLoop(ctx context.Context) {
	t := time.NewTicker(s.pingEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.pingMu.Lock()
			pending := s.pingPending
			s.pingMu.Unlock()

			if pending {
				s.logger().Warn("no pong received since last ping, closing websocket session")
				_ = s.sock.Close()
				return
			}

			if err := s.writeControl(ctx, OpPing, nil); err != nil {
				return
			}

			s.pingMu.Lock()
			s.pingPending = true
			s.pingMu.Unlock()
		}
	}
}

func (s *Session) mask() *[4]byte {
	if s.isServer {
		return nil
	}
	var m [4]byte
	_, _ = rand.Read(m[:])
	return &m
}

// Send writes one unfragmented text or binary message.
func (s *Session) Send(ctx context.Context, opcode Opcode, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var buf bytes.Buffer
	if err := WriteFrame(&buf, opcode, true, payload, s.mask()); err != nil {
		return err
	}
	_, err := s.sock.Write(ctx, buf.Bytes())
	return err
}

func (s *Session) writeControl(ctx context.Context, opcode Opcode, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var buf bytes.Buffer
	if err := WriteFrame(&buf, opcode, true, payload, s.mask()); err != nil {
		return err
	}
	_, err := s.sock.Write(ctx, buf.Bytes())
	return err
}

// Close performs the half-close handshake: send a close frame, then wait
// up to closeAckWait for the peer's close-frame reply before releasing the
// socket regardless of whether one arrived.
func (s *Session) Close(ctx context.Context, code uint16, reason string) error {
	if s.closed {
		return nil
	}

	if err := s.writeControl(ctx, OpClose, closePayload(code, reason)); err != nil {
		s.closed = true
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, closeAckWait)
	defer cancel()

	r := socketReader{ctx: wctx, sock: s.sock}
	for {
		f, err := ReadFrame(r)
		if err != nil {
			break
		}
		if f.Opcode == OpClose {
			break
		}
	}

	s.closed = true
	return s.sock.Close()
}

type socketReader struct {
	ctx  context.Context
	sock transport.Socket
}

func (r socketReader) Read(p []byte) (int, error) {
	n, err := r.sock.ReadSome(r.ctx, p)
	if n == 0 && err == nil {
		return 0, io.ErrNoProgress
	}
	return n, err
}

var _ fmt.Stringer = Opcode(0)

func (o Opcode) String() string {
	switch o {
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return "continuation"
	}
}
