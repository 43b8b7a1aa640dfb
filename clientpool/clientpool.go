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

// Package clientpool is the client-side connection pool (spec.md §4.10 /
// C10): composite-keyed reuse (host, port, ssl, unix-path) guarded by an
// RWMutex, with weak entries -- a pool hit that fails its live-check is
// treated as a miss and mutates the pool under a write lock, exactly as
// spec.md's invariants describe.
package clientpool

import (
	"sync"
	"time"

	"github.com/sabouaram/httpkit/transport"
)

// Key composite-identifies a reusable connection.
type Key struct {
	Host     string
	Port     int
	SSL      bool
	UnixPath string
}

type entry struct {
	sock     transport.Socket
	lastUsed time.Time
}

// Pool reuses idle client sockets keyed by Key, expiring entries idle
// longer than TTL.
type Pool struct {
	mu  sync.RWMutex
	m   map[Key][]*entry
	ttl time.Duration
}

func New(ttl time.Duration) *Pool {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &Pool{m: make(map[Key][]*entry), ttl: ttl}
}

// liveCheck reports whether a pooled socket is still usable, judged only by
// Available(): a socket with unread bytes buffered (the peer sent something
// on an idle connection) is discarded.
func liveCheck(s transport.Socket) bool {
	return s.Available() == 0
}

// Get returns a pooled socket for key if one survives its live-check,
// first under a read lock; a failed live-check promotes to a write lock
// to evict the dead entry, per spec.md's "pool entries are weak" invariant.
func (p *Pool) Get(key Key) (transport.Socket, bool) {
	p.mu.RLock()
	list := p.m[key]
	var candidate *entry
	if len(list) > 0 {
		candidate = list[len(list)-1]
	}
	p.mu.RUnlock()

	if candidate == nil {
		return nil, false
	}

	if time.Since(candidate.lastUsed) > p.ttl || !liveCheck(candidate.sock) {
		p.evict(key, candidate)
		return nil, false
	}

	p.mu.Lock()
	list = p.m[key]
	if n := len(list); n > 0 {
		p.m[key] = list[:n-1]
	}
	p.mu.Unlock()

	return candidate.sock, true
}

func (p *Pool) evict(key Key, dead *entry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	list := p.m[key]
	for i, e := range list {
		if e == dead {
			p.m[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
	_ = dead.sock.Close()
}

// Put returns sock to the pool for reuse.
func (p *Pool) Put(key Key, sock transport.Socket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = append(p.m[key], &entry{sock: sock, lastUsed: time.Now()})
}

// Len reports the total number of pooled (idle) sockets across all keys.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, list := range p.m {
		n += len(list)
	}
	return n
}

// Sweep closes and removes every entry idle longer than the pool TTL,
// intended to run periodically off a reactor timer.
func (p *Pool) Sweep() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, list := range p.m {
		kept := list[:0]
		for _, e := range list {
			if time.Since(e.lastUsed) > p.ttl {
				_ = e.sock.Close()
				continue
			}
			kept = append(kept, e)
		}
		p.m[key] = kept
	}
}
