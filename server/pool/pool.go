/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package pool manages a named group of server.Server instances as one
// unit -- e.g. a plaintext listener on :8080 and a TLS listener on :8443
// started and stopped together -- generalizing the teacher's
// bind-address-keyed httpserver pool (Walk/Store/Load/Delete) from its
// net/http Server type to this module's protocol-engine Server.
package pool

import (
	"context"
	"sync"

	libctx "github.com/sabouaram/httpkit/context"
	liblog "github.com/sabouaram/httpkit/logger"
	"github.com/sabouaram/httpkit/server"
)

// FuncWalk is called for each server in the pool; return false to stop.
type FuncWalk func(bindAddress string, srv *server.Server) bool

// Pool manages the lifecycle of a named group of servers.
type Pool interface {
	Store(bindAddress string, srv *server.Server)
	Load(bindAddress string) (*server.Server, bool)
	Delete(bindAddress string)
	Walk(fct FuncWalk)
	Len() int

	// Serve starts every server in the pool concurrently, returning once
	// all of them have stopped, through ctx being cancelled or Close.
	Serve(ctx context.Context) error
	// Close closes every listener in the pool.
	Close() error
}

type pool struct {
	log liblog.FuncLog
	m   libctx.Config[string]
	mu  sync.Mutex
	n   int
}

func New(log liblog.FuncLog) Pool {
	return &pool{log: log, m: libctx.New[string](context.Background())}
}

func (p *pool) Store(bindAddress string, srv *server.Server) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, loaded := p.m.LoadOrStore(bindAddress, srv); !loaded {
		p.n++
	} else {
		p.m.Store(bindAddress, srv)
	}
}

func (p *pool) Load(bindAddress string) (*server.Server, bool) {
	v, ok := p.m.Load(bindAddress)
	if !ok {
		return nil, false
	}
	srv, ok := v.(*server.Server)
	return srv, ok
}

func (p *pool) Delete(bindAddress string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.m.LoadAndDelete(bindAddress); ok {
		p.n--
	}
}

func (p *pool) Walk(fct FuncWalk) {
	p.m.Walk(func(k string, v interface{}) bool {
		srv, ok := v.(*server.Server)
		if !ok {
			return true
		}
		return fct(k, srv)
	})
}

func (p *pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

func (p *pool) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, p.Len())

	p.Walk(func(addr string, srv *server.Server) bool {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
				errCh <- err
			}
		}()
		return true
	})

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *pool) Close() error {
	var first error
	p.Walk(func(_ string, srv *server.Server) bool {
		if err := srv.Close(); err != nil && first == nil {
			first = err
		}
		return true
	})
	return first
}
