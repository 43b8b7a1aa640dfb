/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

package logger_test

import (
	"bytes"

	"github.com/sirupsen/logrus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	liblog "github.com/sabouaram/httpkit/logger"
)

var _ = Describe("Logger", func() {
	It("writes fields through New", func() {
		buf := &bytes.Buffer{}
		raw := logrus.New()
		raw.SetOutput(buf)
		raw.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

		log := liblog.New(raw)
		log.Info("hello", liblog.F("k", "v"))

		Expect(buf.String()).To(ContainSubstring("hello"))
		Expect(buf.String()).To(ContainSubstring("k=v"))
	})

	It("carries fields across With", func() {
		buf := &bytes.Buffer{}
		raw := logrus.New()
		raw.SetOutput(buf)
		raw.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

		log := liblog.New(raw).With(liblog.F("request_id", "abc"))
		log.Warn("slow")

		Expect(buf.String()).To(ContainSubstring("request_id=abc"))
		Expect(buf.String()).To(ContainSubstring("slow"))
	})

	It("discards everything written to it", func() {
		log := liblog.Discard()
		Expect(func() { log.Info("ignored") }).NotTo(Panic())
	})

	It("OrDiscard falls back when FuncLog is nil or returns nil", func() {
		Expect(liblog.OrDiscard(nil)).NotTo(BeNil())

		var f liblog.FuncLog = func() liblog.Logger { return nil }
		Expect(liblog.OrDiscard(f)).NotTo(BeNil())
	})

	It("OrDiscard returns the supplied logger when present", func() {
		buf := &bytes.Buffer{}
		raw := logrus.New()
		raw.SetOutput(buf)

		custom := liblog.New(raw)
		f := func() liblog.Logger { return custom }

		Expect(liblog.OrDiscard(f)).To(BeIdenticalTo(custom))
	})
})
