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

package reactor

import (
	"context"
	"runtime"
	"sync"

	liblog "github.com/sabouaram/httpkit/logger"
)

// Pool is the process-wide shared worker pool described in spec.md §4.1:
// a fixed number of reactors (default hardware concurrency), started lazily
// on first client registration and stopped once the last client leaves.
// Clients are handed loops round-robin on each new connection.
type Pool interface {
	// Register adds one client to the pool, starting the underlying
	// reactors if this is the first registration, and returns the Reactor
	// this client should drive its I/O with.
	Register() Reactor

	// Unregister removes one client; once the registration count reaches
	// zero every underlying reactor is stopped.
	Unregister()

	// Size reports the number of reactors backing the pool.
	Size() int

	// Clients reports the current registration count.
	Clients() int
}

type pool struct {
	log liblog.FuncLog

	mu      sync.Mutex
	loops   []Reactor
	clients int
	next    int
}

// NewPool builds a Pool of n reactors; n <= 0 defaults to
// runtime.GOMAXPROCS(0). The reactors are not started until the first
// Register call.
func NewPool(n int, log liblog.FuncLog) Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}

	loops := make([]Reactor, n)
	for i := range loops {
		loops[i] = New(log)
	}

	return &pool{log: log, loops: loops}
}

func (p *pool) Register() Reactor {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.clients == 0 {
		for _, l := range p.loops {
			_ = l.Start(context.Background())
		}
	}
	p.clients++

	r := p.loops[p.next%len(p.loops)]
	p.next++
	return r
}

func (p *pool) Unregister() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.clients == 0 {
		return
	}
	p.clients--

	if p.clients == 0 {
		for _, l := range p.loops {
			_ = l.Stop(context.Background())
		}
	}
}

func (p *pool) Size() int { return len(p.loops) }

func (p *pool) Clients() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clients
}

// Shared is the process-global pool instance described in spec.md §4.1 as
// "the system's one piece of process-wide state". Components that want the
// shared-pool deployment mode call reactor.Shared().Register() instead of
// reactor.New().
var sharedOnce sync.Once
var sharedPool Pool

func Shared() Pool {
	sharedOnce.Do(func() {
		sharedPool = NewPool(0, nil)
	})
	return sharedPool
}
