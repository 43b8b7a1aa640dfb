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

package router_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/httpkit/request"
	"github.com/sabouaram/httpkit/response"
	"github.com/sabouaram/httpkit/router"
)

func noop(_ *request.Request, _ *response.Response) {}

var _ = Describe("Router", func() {
	It("matches a literal path and method", func() {
		r := router.New()
		r.Register("GET", "/healthz", noop)

		h, params, matched := r.Dispatch("GET", "/healthz")
		Expect(h).NotTo(BeNil())
		Expect(matched).To(BeTrue())
		Expect(params).To(BeEmpty())
	})

	It("captures :name segments as params", func() {
		r := router.New()
		r.Register("GET", "/users/:id", noop)

		h, params, matched := r.Dispatch("GET", "/users/42")
		Expect(h).NotTo(BeNil())
		Expect(matched).To(BeTrue())
		Expect(params).To(Equal(map[string]string{"id": "42"}))
	})

	It("constrains a :name(regex) segment and rejects non-matching values", func() {
		r := router.New()
		r.Register("GET", "/items/:id(\\d+)", noop)

		_, _, matched := r.Dispatch("GET", "/items/abc")
		Expect(matched).To(BeFalse())

		_, params, matched := r.Dispatch("GET", "/items/123")
		Expect(matched).To(BeTrue())
		Expect(params["id"]).To(Equal("123"))
	})

	It("reports matchedPath true but a nil handler when the method doesn't match any route on that path", func() {
		r := router.New()
		r.Register("GET", "/widgets", noop)

		h, _, matched := r.Dispatch("POST", "/widgets")
		Expect(matched).To(BeTrue())
		Expect(h).To(BeNil())
	})

	It("reports matchedPath false for a completely unknown path", func() {
		r := router.New()
		r.Register("GET", "/widgets", noop)

		_, _, matched := r.Dispatch("GET", "/nope")
		Expect(matched).To(BeFalse())
	})

	It("falls back to the installed Fallback handler when nothing matches", func() {
		r := router.New()
		r.Fallback(noop)

		h, _, matched := r.Dispatch("GET", "/missing")
		Expect(h).NotTo(BeNil())
		Expect(matched).To(BeFalse())
	})

	It("answers a CORS preflight OPTIONS request when enabled", func() {
		r := router.New()
		r.EnableCORS()
		r.Register("GET", "/api", noop)

		h, _, matched := r.Dispatch("OPTIONS", "/api")
		Expect(h).NotTo(BeNil())
		Expect(matched).To(BeTrue())
	})

	It("method match is case-insensitive", func() {
		r := router.New()
		r.Register("get", "/lower", noop)

		h, _, matched := r.Dispatch("GET", "/lower")
		Expect(h).NotTo(BeNil())
		Expect(matched).To(BeTrue())
	})
})
