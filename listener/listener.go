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

// Package listener implements the accept loop spec.md §4.3 describes: bind
// with address reuse, per-peer allow/deny filtering, optional TLS handshake
// dispatch, and backoff on bind/accept failure.
package listener

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/sabouaram/httpkit/certs"
	liblog "github.com/sabouaram/httpkit/logger"
	"github.com/sabouaram/httpkit/transport"
)

// Handler is invoked with every accepted (and, for TLS, handshaken) socket.
type Handler func(ctx context.Context, sock transport.Socket)

// Config configures one Listener instance.
type Config struct {
	Network string // "tcp" or "unix"
	Address string // host:port, or a filesystem path for "unix"

	TLS      *tls.Config // nil disables TLS for this listener
	Registry certs.Registry

	AllowIP []string // empty means "all allowed"
	DenyIP  []string // checked first; deny wins over allow

	BindRetryDelay   time.Duration // default 5s
	BindRetryLimit   int           // -1 = infinite, default -1
	AcceptRetryDelay time.Duration // default 1s
}

// Listener owns one bound socket and its accept loop.
type Listener struct {
	cfg Config
	log liblog.FuncLog

	ln net.Listener
}

func New(cfg Config, log liblog.FuncLog) *Listener {
	if cfg.BindRetryDelay <= 0 {
		cfg.BindRetryDelay = 5 * time.Second
	}
	if cfg.BindRetryLimit == 0 {
		cfg.BindRetryLimit = -1
	}
	if cfg.AcceptRetryDelay <= 0 {
		cfg.AcceptRetryDelay = time.Second
	}
	return &Listener{cfg: cfg, log: log}
}

func (l *Listener) logger() liblog.Logger { return liblog.OrDiscard(l.log) }

// Bind opens the listening socket, retrying on failure with the configured
// back-off up to BindRetryLimit attempts (-1 = unlimited).
func (l *Listener) Bind(ctx context.Context) error {
	lc := net.ListenConfig{
		Control: reuseAddrControl,
	}

	attempts := 0
	for {
		ln, err := lc.Listen(ctx, l.cfg.Network, l.cfg.Address)
		if err == nil {
			l.ln = ln
			l.logger().Info("listening", liblog.F("network", l.cfg.Network), liblog.F("address", l.cfg.Address))
			return nil
		}

		attempts++
		if l.cfg.BindRetryLimit >= 0 && attempts >= l.cfg.BindRetryLimit {
			return err
		}

		l.logger().Warn("bind failed, retrying", liblog.F("error", err), liblog.F("attempt", attempts))

		select {
		case <-time.After(l.cfg.BindRetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Serve runs the accept loop until ctx is cancelled or Close is called.
func (l *Listener) Serve(ctx context.Context, handle Handler) error {
	for {
		c, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			l.logger().Warn("accept failed, retrying", liblog.F("error", err))
			select {
			case <-time.After(l.cfg.AcceptRetryDelay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if !l.allowed(c.RemoteAddr()) {
			l.logger().Debug("peer rejected by allow/deny list", liblog.F("remote", c.RemoteAddr().String()))
			_ = c.Close()
			continue
		}

		go l.handleConn(ctx, c, handle)
	}
}

func (l *Listener) handleConn(ctx context.Context, c net.Conn, handle Handler) {
	if l.cfg.TLS != nil {
		cfg := l.cfg.TLS
		if l.cfg.Registry != nil {
			cfg = l.cfg.Registry.ServerConfig()
		}

		tc := tls.Server(c, cfg)
		if err := tc.HandshakeContext(ctx); err != nil {
			l.logger().Warn("TLS handshake failed", liblog.F("error", err))
			_ = c.Close()
			return
		}
		handle(ctx, transport.FromConn(tc))
		return
	}

	handle(ctx, transport.FromConn(c))
}

func (l *Listener) allowed(addr net.Addr) bool {
	ip := hostOf(addr)

	for _, d := range l.cfg.DenyIP {
		if matchIP(d, ip) {
			return false
		}
	}

	if len(l.cfg.AllowIP) == 0 {
		return true
	}

	for _, a := range l.cfg.AllowIP {
		if matchIP(a, ip) {
			return true
		}
	}

	return false
}

func hostOf(addr net.Addr) string {
	h, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return h
}

func matchIP(pattern, ip string) bool {
	if pattern == ip {
		return true
	}
	if _, cidr, err := net.ParseCIDR(pattern); err == nil {
		return cidr.Contains(net.ParseIP(ip))
	}
	return strings.EqualFold(pattern, ip)
}

func (l *Listener) Close() error {
	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}

func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}
