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

// Package reactor implements the cooperative task runtime every connection
// in this module is driven by: spawn/sleep/cancel/wait-for-signal over a Go
// runtime substrate, plus a shared worker-pool registry that auto-starts on
// first client and auto-stops on last, the one piece of process-wide state
// the protocol engine keeps. It mirrors the lifecycle idiom of the teacher's
// runner/startStop package (New(start, stop), IsRunning, Uptime) generalized
// from a single managed goroutine to an arbitrary number of spawned tasks.
package reactor

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	liblog "github.com/sabouaram/httpkit/logger"
)

// Task is a unit of cooperative work. It must observe ctx.Done() to honour
// cancellation and Reactor shutdown.
type Task func(ctx context.Context)

// Reactor is a single event loop: a goroutine scheduler scoped to one
// server or client instance (the "standalone" deployment mode of §4.1), or
// one slot in a Pool (the "shared pool" mode).
type Reactor interface {
	// Start boots the reactor's background bookkeeping (idle-signal watch,
	// uptime clock). Safe to call once; a second call is a no-op.
	Start(ctx context.Context) error

	// Stop cancels every task spawned on this reactor and waits for them to
	// return, up to ctx's deadline.
	Stop(ctx context.Context) error

	IsRunning() bool
	Uptime() time.Duration

	// Spawn runs task on its own goroutine, tied to the reactor's lifetime:
	// Stop cancels the context passed to every still-running task.
	Spawn(task Task)

	// Sleep blocks the calling task for d, or returns ctx.Err() if ctx is
	// done first — the "await timer" half of the composed-cancellation
	// idiom spec.md describes for connect-with-timeout.
	Sleep(ctx context.Context, d time.Duration) error

	// WaitForSignal returns a channel delivering any of the given OS
	// signals once, then closing. Used by standalone servers to implement
	// graceful shutdown on SIGINT/SIGTERM.
	WaitForSignal(sig ...os.Signal) <-chan os.Signal

	// Inc/Dec track the per-client pending_requests counter spec.md's
	// reactor section calls out as driving Wait/WaitFor semantics.
	Inc()
	Dec()
	Pending() int64

	// Wait blocks until Pending reaches zero.
	Wait()
	// WaitFor blocks until Pending reaches zero or d elapses, reporting
	// which happened.
	WaitFor(d time.Duration) bool
}

type reactor struct {
	log liblog.FuncLog

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	started time.Time
	pending atomic.Int64

	idleCh chan struct{}
}

// New creates a standalone Reactor. log may be nil (defaults to a discard
// logger per the FuncLog convention shared across this module).
func New(log liblog.FuncLog) Reactor {
	return &reactor{
		log:    log,
		idleCh: make(chan struct{}, 1),
	}
}

func (r *reactor) logger() liblog.Logger {
	return liblog.OrDiscard(r.log)
}

func (r *reactor) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Load() {
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.started = time.Now()
	r.running.Store(true)
	r.logger().Debug("reactor started")
	return nil
}

func (r *reactor) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running.Load() {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.mu.Lock()
	r.running.Store(false)
	r.mu.Unlock()

	r.logger().Debug("reactor stopped")
	return nil
}

func (r *reactor) IsRunning() bool {
	return r.running.Load()
}

func (r *reactor) Uptime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running.Load() || r.started.IsZero() {
		return 0
	}
	return time.Since(r.started)
}

func (r *reactor) Spawn(task Task) {
	if task == nil {
		return
	}

	r.mu.Lock()
	ctx := r.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		task(ctx)
	}()
}

func (r *reactor) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *reactor) WaitForSignal(sig ...os.Signal) <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	if len(sig) == 0 {
		sig = []os.Signal{os.Interrupt}
	}
	signal.Notify(ch, sig...)

	out := make(chan os.Signal, 1)
	go func() {
		s := <-ch
		signal.Stop(ch)
		out <- s
		close(out)
	}()
	return out
}

func (r *reactor) Inc() { r.pending.Add(1) }

func (r *reactor) Dec() {
	if r.pending.Add(-1) <= 0 {
		select {
		case r.idleCh <- struct{}{}:
		default:
		}
	}
}

func (r *reactor) Pending() int64 { return r.pending.Load() }

func (r *reactor) Wait() {
	for r.pending.Load() > 0 {
		<-r.idleCh
	}
}

func (r *reactor) WaitFor(d time.Duration) bool {
	if r.pending.Load() <= 0 {
		return true
	}

	t := time.NewTimer(d)
	defer t.Stop()

	for {
		select {
		case <-r.idleCh:
			if r.pending.Load() <= 0 {
				return true
			}
		case <-t.C:
			return r.pending.Load() <= 0
		}
	}
}
