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

// Package transport provides the single polymorphic stream interface every
// other package in this module talks to instead of net.Conn directly: TCP,
// TLS-over-TCP, and UNIX-domain variants, each awaitable through
// context.Context deadlines rather than bespoke timeout plumbing.
package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"time"

	liberr "github.com/sabouaram/httpkit/errors"
)

// Kind identifies which concrete transport backs a Socket.
type Kind uint8

const (
	KindTCP Kind = iota
	KindTLS
	KindUnix
)

func (k Kind) String() string {
	switch k {
	case KindTLS:
		return "tls"
	case KindUnix:
		return "unix"
	default:
		return "tcp"
	}
}

// Socket is the uniform stream spec.md §4.2 describes: connect, buffered
// reads with three granularities, scatter writes, readiness waits, and the
// metadata handlers need to log/route a connection.
type Socket interface {
	// ReadSome reads at most len(buf) bytes, blocking until at least one
	// byte is available or ctx is done.
	ReadSome(ctx context.Context, buf []byte) (int, error)

	// ReadExact reads exactly len(buf) bytes or returns an IOError.
	ReadExact(ctx context.Context, buf []byte) (int, error)

	// ReadUntil reads until delim is seen (inclusive) or ctx is done.
	ReadUntil(ctx context.Context, delim byte) ([]byte, error)

	// Write writes buf fully.
	Write(ctx context.Context, buf []byte) (int, error)

	// WriteVec writes each buffer in order, as a single logical write.
	WriteVec(ctx context.Context, bufs [][]byte) (int, error)

	// Handshake performs the TLS handshake for TLS sockets; peerName sets
	// SNI on the client side. No-op for non-TLS sockets.
	Handshake(ctx context.Context, peerName string) error

	Close() error
	// Cancel unblocks any in-flight Read/Write with an IOError, without
	// closing the underlying descriptor.
	Cancel()

	Available() int
	RemoteIP() string
	LocalPort() int
	RemotePort() int
	IsSecure() bool
	Kind() Kind

	// Raw exposes the underlying net.Conn for handover to a WebSocket or
	// SSE session (spec.md's release_socket handover).
	Raw() net.Conn
}

type socket struct {
	kind Kind
	conn net.Conn
	tlsC *tls.Conn
	br   *bufio.Reader
	done chan struct{}
}

func wrap(kind Kind, c net.Conn) *socket {
	s := &socket{kind: kind, conn: c, br: bufio.NewReaderSize(c, 8192), done: make(chan struct{})}
	if t, ok := c.(*tls.Conn); ok {
		s.tlsC = t
	}
	return s
}

// Dial connects a TCP or UNIX socket with a timer race against timeout:
// whichever of the dial or the timer finishes first wins, per spec.md §4.2.
func Dial(ctx context.Context, network, addr string, timeout time.Duration) (Socket, error) {
	dctx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		dctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var d net.Dialer
	c, err := d.DialContext(dctx, network, addr)
	if err != nil {
		if dctx.Err() == context.DeadlineExceeded {
			return nil, liberr.TimeoutError.ErrorParent(err)
		}
		return nil, liberr.IOError.ErrorParent(err)
	}

	k := KindTCP
	if network == "unix" {
		k = KindUnix
	}
	return wrap(k, c), nil
}

// DialTLS connects then immediately performs the TLS client handshake with
// peerName as the SNI hint.
func DialTLS(ctx context.Context, network, addr string, cfg *tls.Config, peerName string, timeout time.Duration) (Socket, error) {
	s, err := Dial(ctx, network, addr, timeout)
	if err != nil {
		return nil, err
	}

	cc := cfg.Clone()
	if cc == nil {
		cc = &tls.Config{}
	}
	if peerName != "" {
		cc.ServerName = peerName
	}

	tconn := tls.Client(s.Raw(), cc)
	ts := wrap(KindTLS, tconn)
	if err := ts.Handshake(ctx, peerName); err != nil {
		_ = ts.Close()
		return nil, err
	}
	return ts, nil
}

// FromConn adapts an already-accepted net.Conn (from a Listener) into a
// Socket, optionally marking it secure when it is already a *tls.Conn.
func FromConn(c net.Conn) Socket {
	if _, ok := c.(*tls.Conn); ok {
		return wrap(KindTLS, c)
	}
	if _, ok := c.(*net.UnixConn); ok {
		return wrap(KindUnix, c)
	}
	return wrap(KindTCP, c)
}

func (s *socket) Kind() Kind     { return s.kind }
func (s *socket) IsSecure() bool { return s.kind == KindTLS }
func (s *socket) Raw() net.Conn  { return s.conn }

func (s *socket) Available() int {
	return s.br.Buffered()
}

func (s *socket) RemoteIP() string {
	if a, ok := s.conn.RemoteAddr().(*net.TCPAddr); ok {
		return a.IP.String()
	}
	if s.conn.RemoteAddr() != nil {
		return s.conn.RemoteAddr().String()
	}
	return ""
}

func (s *socket) LocalPort() int {
	if a, ok := s.conn.LocalAddr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

func (s *socket) RemotePort() int {
	if a, ok := s.conn.RemoteAddr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

func (s *socket) deadline(ctx context.Context) {
	if dl, ok := ctx.Deadline(); ok {
		_ = s.conn.SetDeadline(dl)
	} else {
		_ = s.conn.SetDeadline(time.Time{})
	}
}

func (s *socket) ReadSome(ctx context.Context, buf []byte) (int, error) {
	s.deadline(ctx)
	n, err := s.br.Read(buf)
	if err != nil {
		return n, liberr.IOError.ErrorParent(err)
	}
	return n, nil
}

func (s *socket) ReadExact(ctx context.Context, buf []byte) (int, error) {
	s.deadline(ctx)
	n, err := readFull(s.br, buf)
	if err != nil {
		return n, liberr.IOError.ErrorParent(err)
	}
	return n, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *socket) ReadUntil(ctx context.Context, delim byte) ([]byte, error) {
	s.deadline(ctx)
	line, err := s.br.ReadBytes(delim)
	if err != nil {
		return line, liberr.IOError.ErrorParent(err)
	}
	return line, nil
}

func (s *socket) Write(ctx context.Context, buf []byte) (int, error) {
	s.deadline(ctx)
	n, err := s.conn.Write(buf)
	if err != nil {
		return n, liberr.IOError.ErrorParent(err)
	}
	return n, nil
}

func (s *socket) WriteVec(ctx context.Context, bufs [][]byte) (int, error) {
	s.deadline(ctx)
	total := 0
	for _, b := range bufs {
		n, err := s.conn.Write(b)
		total += n
		if err != nil {
			return total, liberr.IOError.ErrorParent(err)
		}
	}
	return total, nil
}

func (s *socket) Handshake(ctx context.Context, peerName string) error {
	if s.tlsC == nil {
		return nil
	}
	s.deadline(ctx)
	if err := s.tlsC.HandshakeContext(ctx); err != nil {
		return liberr.TLSError.ErrorParent(err)
	}
	return nil
}

func (s *socket) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return s.conn.Close()
}

func (s *socket) Cancel() {
	_ = s.conn.SetDeadline(time.Now())
}
