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

	"github.com/sabouaram/httpkit/transport"
)

// pipeline serialises the responses of pipelined requests: streams are
// appended in request order, and only the head-of-line stream may write to
// the socket at any moment. Appending never blocks on a prior stream's
// write, so a connection's read loop can parse the next request while an
// earlier one is still draining -- real pipelining, not one request at a
// time (spec.md's head-of-line ordering applies to writes only).
type pipeline struct {
	mu      sync.Mutex
	q       []*stream
	writing bool
	writeMu sync.Mutex
	idle    chan struct{}
}

func newPipeline() *pipeline {
	p := &pipeline{idle: make(chan struct{})}
	close(p.idle)
	return p
}

// enqueue appends a new stream, starting its writer task if it is now at
// the head of the queue and nothing else is writing. It never blocks on
// the stream actually being written.
func (p *pipeline) enqueue(ctx context.Context, sock transport.Socket, s *stream) {
	p.mu.Lock()
	p.q = append(p.q, s)
	start := !p.writing
	if start {
		p.writing = true
		p.idle = make(chan struct{})
	}
	p.mu.Unlock()

	if start {
		go p.drain(ctx, sock)
	}
}

// Wait blocks until every stream enqueued so far has finished writing.
func (p *pipeline) Wait() {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()
	<-idle
}

func (p *pipeline) drain(ctx context.Context, sock transport.Socket) {
	for {
		p.mu.Lock()
		if len(p.q) == 0 {
			p.writing = false
			idle := p.idle
			p.mu.Unlock()
			close(idle)
			return
		}
		head := p.q[0]
		p.mu.Unlock()

		keepAlive, err := head.writeLoop(ctx, sock, &p.writeMu)
		head.close()
		if head.onDone != nil {
			head.onDone(keepAlive && err == nil)
		}

		p.mu.Lock()
		p.q = p.q[1:]
		stop := err != nil
		var abandoned []*stream
		if stop {
			abandoned = p.q
			p.q = nil
			p.writing = false
		}
		idle := p.idle
		p.mu.Unlock()

		if stop {
			for _, a := range abandoned {
				a.close()
				if a.onDone != nil {
					a.onDone(false)
				}
			}
			close(idle)
			return
		}
	}
}
