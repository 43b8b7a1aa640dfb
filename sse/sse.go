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

// Package sse implements a WHATWG EventSource-compatible Server-Sent
// Events writer: one goroutine draining a bounded event queue onto the
// upgraded socket, with an idle timeout that closes the socket when no
// event is published in time.
package sse

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	liberr "github.com/sabouaram/httpkit/errors"
	liblog "github.com/sabouaram/httpkit/logger"
	"github.com/sabouaram/httpkit/transport"
)

// Event is one server-sent event.
type Event struct {
	ID    string
	Event string
	Data  string
	Retry time.Duration
}

func (e Event) encode() []byte {
	var buf bytes.Buffer
	if e.ID != "" {
		fmt.Fprintf(&buf, "id: %s\n", e.ID)
	}
	if e.Event != "" {
		fmt.Fprintf(&buf, "event: %s\n", e.Event)
	}
	if e.Retry > 0 {
		fmt.Fprintf(&buf, "retry: %d\n", e.Retry.Milliseconds())
	}
	for _, line := range strings.Split(e.Data, "\n") {
		fmt.Fprintf(&buf, "data: %s\n", line)
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// Writer drains a bounded queue of Events onto sock, the layout spec.md
// names for the WebSocket-over-stream upgrade handover applied to SSE:
// once release_socket hands over the raw connection, this is its sole
// owner.
type Writer struct {
	sock        transport.Socket
	log         liblog.FuncLog
	idleTimeout time.Duration

	queue chan Event
}

// NewWriter creates a Writer with the given bounded queue depth. The
// caller must have already written the 200 + text/event-stream response
// head before handing the socket here.
func NewWriter(sock transport.Socket, queueDepth int, idleTimeout time.Duration, log liblog.FuncLog) *Writer {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Writer{sock: sock, log: log, idleTimeout: idleTimeout, queue: make(chan Event, queueDepth)}
}

func (w *Writer) logger() liblog.Logger { return liblog.OrDiscard(w.log) }

// Send enqueues an event; it does not block past the queue's capacity --
// a full queue drops the event and logs a warning rather than stalling
// the publisher.
func (w *Writer) Send(e Event) {
	select {
	case w.queue <- e:
	default:
		w.logger().Warn("sse queue full, dropping event", liblog.F("event", e.Event))
	}
}

// Run drains the queue to the socket until ctx is cancelled, the socket
// errors, or idleTimeout elapses with no events published.
func (w *Writer) Run(ctx context.Context) error {
	timeout := w.idleTimeout
	if timeout <= 0 {
		timeout = 0
	}

	for {
		var timer *time.Timer
		var timeoutCh <-chan time.Time
		if timeout > 0 {
			timer = time.NewTimer(timeout)
			timeoutCh = timer.C
		}

		select {
		case e := <-w.queue:
			if timer != nil {
				timer.Stop()
			}
			if _, err := w.sock.Write(ctx, e.encode()); err != nil {
				return liberr.IOError.ErrorParent(err)
			}
		case <-timeoutCh:
			w.logger().Debug("sse writer idle timeout")
			_ = w.sock.Close()
			return liberr.TimeoutError.Error()
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		}
	}
}

// Comment writes an SSE comment line (":ping"), used as a lightweight
// keep-alive independent of real events.
func (w *Writer) Comment(ctx context.Context, text string) error {
	_, err := w.sock.Write(ctx, []byte(": "+text+"\n\n"))
	if err != nil {
		return liberr.IOError.ErrorParent(err)
	}
	return nil
}
