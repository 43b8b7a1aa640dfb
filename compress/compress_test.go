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

package compress_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/httpkit/compress"
)

var _ = Describe("Negotiate", func() {
	It("prefers gzip when offered", func() {
		Expect(compress.Negotiate("gzip, deflate")).To(Equal(compress.Gzip))
	})

	It("falls back to deflate when gzip is absent", func() {
		Expect(compress.Negotiate("deflate")).To(Equal(compress.Deflate))
	})

	It("falls back to identity when neither is offered", func() {
		Expect(compress.Negotiate("br")).To(Equal(compress.Identity))
		Expect(compress.Negotiate("")).To(Equal(compress.Identity))
	})
})

var _ = Describe("Compress/Decompress", func() {
	body := []byte("the quick brown fox jumps over the lazy dog, repeatedly, repeatedly")

	It("round-trips through gzip", func() {
		packed, err := compress.Compress(compress.Gzip, body)
		Expect(err).NotTo(HaveOccurred())
		Expect(packed).NotTo(Equal(body))

		unpacked, err := compress.Decompress(compress.Gzip, packed)
		Expect(err).NotTo(HaveOccurred())
		Expect(unpacked).To(Equal(body))
	})

	It("round-trips through deflate", func() {
		packed, err := compress.Compress(compress.Deflate, body)
		Expect(err).NotTo(HaveOccurred())

		unpacked, err := compress.Decompress(compress.Deflate, packed)
		Expect(err).NotTo(HaveOccurred())
		Expect(unpacked).To(Equal(body))
	})

	It("passes identity through unchanged", func() {
		packed, err := compress.Compress(compress.Identity, body)
		Expect(err).NotTo(HaveOccurred())
		Expect(packed).To(Equal(body))

		unpacked, err := compress.Decompress(compress.Identity, body)
		Expect(err).NotTo(HaveOccurred())
		Expect(unpacked).To(Equal(body))
	})

	It("fails to decompress a corrupt gzip stream", func() {
		_, err := compress.Decompress(compress.Gzip, []byte("not gzip data"))
		Expect(err).To(HaveOccurred())
	})
})
