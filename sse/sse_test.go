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

package sse_test

import (
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/httpkit/sse"
	"github.com/sabouaram/httpkit/transport"
)

var _ = Describe("Writer", func() {
	It("encodes id/event/data/retry fields and a trailing blank line", func() {
		client, srv := net.Pipe()
		defer client.Close()
		defer srv.Close()

		w := sse.NewWriter(transport.FromConn(srv), 4, 0, nil)

		ctx, cancel := context.WithCancel(context.Background())
		go func() { _ = w.Run(ctx) }()
		defer cancel()

		w.Send(sse.Event{ID: "1", Event: "tick", Data: "hello", Retry: 2 * time.Second})

		buf := make([]byte, 256)
		n, err := client.Read(buf)
		Expect(err).To(BeNil())
		out := string(buf[:n])
		Expect(out).To(ContainSubstring("id: 1\n"))
		Expect(out).To(ContainSubstring("event: tick\n"))
		Expect(out).To(ContainSubstring("retry: 2000\n"))
		Expect(out).To(ContainSubstring("data: hello\n"))
		Expect(out).To(HaveSuffix("\n\n"))
	})

	It("splits multi-line data into multiple data: lines", func() {
		client, srv := net.Pipe()
		defer client.Close()
		defer srv.Close()

		w := sse.NewWriter(transport.FromConn(srv), 4, 0, nil)
		ctx, cancel := context.WithCancel(context.Background())
		go func() { _ = w.Run(ctx) }()
		defer cancel()

		w.Send(sse.Event{Data: "line1\nline2"})

		buf := make([]byte, 256)
		n, err := client.Read(buf)
		Expect(err).To(BeNil())
		out := string(buf[:n])
		Expect(out).To(ContainSubstring("data: line1\n"))
		Expect(out).To(ContainSubstring("data: line2\n"))
	})

	It("drops events past the bounded queue depth instead of blocking", func() {
		client, srv := net.Pipe()
		defer client.Close()
		defer srv.Close()

		w := sse.NewWriter(transport.FromConn(srv), 1, 0, nil)
		// no Run goroutine draining it: first Send fills the queue, the
		// second must return immediately rather than blocking the caller.
		done := make(chan struct{})
		go func() {
			w.Send(sse.Event{Data: "first"})
			w.Send(sse.Event{Data: "second"})
			close(done)
		}()

		Eventually(done).Should(BeClosed())
	})

	It("Run exits with a timeout error after the idle timeout elapses", func() {
		client, srv := net.Pipe()
		defer client.Close()
		defer srv.Close()

		w := sse.NewWriter(transport.FromConn(srv), 4, 10*time.Millisecond, nil)
		err := w.Run(context.Background())
		Expect(err).NotTo(BeNil())
	})

	It("Run returns the context error when ctx is cancelled", func() {
		client, srv := net.Pipe()
		defer client.Close()
		defer srv.Close()

		w := sse.NewWriter(transport.FromConn(srv), 4, 0, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := w.Run(ctx)
		Expect(err).To(Equal(context.Canceled))
	})

	It("Comment writes a leading-colon keep-alive line", func() {
		client, srv := net.Pipe()
		defer client.Close()
		defer srv.Close()

		w := sse.NewWriter(transport.FromConn(srv), 4, 0, nil)
		go func() {
			_ = w.Comment(context.Background(), "ping")
		}()

		buf := make([]byte, 64)
		n, err := client.Read(buf)
		Expect(err).To(BeNil())
		Expect(string(buf[:n])).To(Equal(": ping\n\n"))
	})
})
