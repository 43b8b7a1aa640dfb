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

package reactor_test

import (
	"context"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/httpkit/reactor"
)

var _ = Describe("Reactor", func() {
	It("tracks running state and uptime across Start/Stop", func() {
		r := reactor.New(nil)
		Expect(r.IsRunning()).To(BeFalse())

		Expect(r.Start(context.Background())).To(Succeed())
		Expect(r.IsRunning()).To(BeTrue())
		Expect(r.Uptime()).To(BeNumerically(">=", 0))

		Expect(r.Stop(context.Background())).To(Succeed())
		Expect(r.IsRunning()).To(BeFalse())
	})

	It("Spawn runs a task and Stop waits for it", func() {
		r := reactor.New(nil)
		Expect(r.Start(context.Background())).To(Succeed())

		var ran atomic.Bool
		r.Spawn(func(ctx context.Context) {
			ran.Store(true)
		})

		Expect(r.Stop(context.Background())).To(Succeed())
		Expect(ran.Load()).To(BeTrue())
	})

	It("cancels spawned tasks on Stop", func() {
		r := reactor.New(nil)
		Expect(r.Start(context.Background())).To(Succeed())

		done := make(chan struct{})
		r.Spawn(func(ctx context.Context) {
			<-ctx.Done()
			close(done)
		})

		Expect(r.Stop(context.Background())).To(Succeed())
		Eventually(done).Should(BeClosed())
	})

	It("Sleep returns early when ctx is cancelled", func() {
		r := reactor.New(nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := r.Sleep(ctx, time.Second)
		Expect(err).To(MatchError(context.Canceled))
	})

	It("tracks Pending via Inc/Dec and Wait unblocks at zero", func() {
		r := reactor.New(nil)
		r.Inc()
		r.Inc()
		Expect(r.Pending()).To(Equal(int64(2)))

		done := make(chan struct{})
		go func() {
			r.Wait()
			close(done)
		}()

		r.Dec()
		Consistently(done).ShouldNot(BeClosed())
		r.Dec()
		Eventually(done).Should(BeClosed())
	})

	It("WaitFor reports timeout when pending never drains", func() {
		r := reactor.New(nil)
		r.Inc()

		Expect(r.WaitFor(10 * time.Millisecond)).To(BeFalse())
	})
})

var _ = Describe("Pool", func() {
	It("starts reactors on first Register and stops on last Unregister", func() {
		p := reactor.NewPool(2, nil)
		Expect(p.Size()).To(Equal(2))
		Expect(p.Clients()).To(Equal(0))

		r1 := p.Register()
		Expect(r1.IsRunning()).To(BeTrue())
		Expect(p.Clients()).To(Equal(1))

		r2 := p.Register()
		Expect(r2.IsRunning()).To(BeTrue())
		Expect(p.Clients()).To(Equal(2))

		p.Unregister()
		Expect(r1.IsRunning()).To(BeTrue())

		p.Unregister()
		Expect(r1.IsRunning()).To(BeFalse())
	})

	It("hands out reactors round-robin", func() {
		p := reactor.NewPool(2, nil)
		first := p.Register()
		second := p.Register()
		Expect(first).NotTo(BeIdenticalTo(second))
	})

	It("Shared returns the same process-wide pool instance", func() {
		Expect(reactor.Shared()).To(BeIdenticalTo(reactor.Shared()))
	})
})
