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
	"crypto/tls"
	"time"

	"github.com/sabouaram/httpkit/certs"
	liblog "github.com/sabouaram/httpkit/logger"
	"github.com/sabouaram/httpkit/listener"
	"github.com/sabouaram/httpkit/router"
	"github.com/sabouaram/httpkit/transport"
)

// ServerConfig is the user-facing server configuration: bind address,
// TLS/registry, routing table, and the per-connection limits applied to
// every accepted socket.
type ServerConfig struct {
	Network string // "tcp" or "unix"
	Address string

	TLS      *tls.Config
	Registry certs.Registry

	AllowIP []string
	DenyIP  []string

	IdleTimeout time.Duration
	MaxBodySize int64

	Router *router.Router
}

// Server is one bound listener driving Connection instances, the unit the
// demo CLI and embedding applications construct directly.
type Server struct {
	cfg ServerConfig
	log liblog.FuncLog
	ln  *listener.Listener
}

func New(cfg ServerConfig, log liblog.FuncLog) *Server {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 75 * time.Second
	}
	if cfg.Router == nil {
		cfg.Router = router.New()
	}

	ln := listener.New(listener.Config{
		Network:  cfg.Network,
		Address:  cfg.Address,
		TLS:      cfg.TLS,
		Registry: cfg.Registry,
		AllowIP:  cfg.AllowIP,
		DenyIP:   cfg.DenyIP,
	}, log)

	return &Server{cfg: cfg, log: log, ln: ln}
}

func (s *Server) logger() liblog.Logger { return liblog.OrDiscard(s.log) }

// Serve binds and runs the accept loop until ctx is cancelled or Close is
// called.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.ln.Bind(ctx); err != nil {
		return err
	}

	s.logger().Info("server listening", liblog.F("address", s.cfg.Address))

	return s.ln.Serve(ctx, func(ctx context.Context, sock transport.Socket) {
		conn := NewConnection(sock, Config{
			Router:      s.cfg.Router,
			MaxBodySize: s.cfg.MaxBodySize,
			IdleTimeout: s.cfg.IdleTimeout,
		}, s.log)

		if err := conn.Start(ctx); err != nil {
			s.logger().Debug("connection ended", liblog.F("error", err))
		}
		_ = sock.Close()
	})
}

func (s *Server) Close() error {
	return s.ln.Close()
}

func (s *Server) Addr() string {
	if a := s.ln.Addr(); a != nil {
		return a.String()
	}
	return s.cfg.Address
}
