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
	"io"
	"net"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/httpkit/transport"
)

var _ = Describe("requestBody", func() {
	var client, srv net.Conn

	BeforeEach(func() {
		client, srv = net.Pipe()
	})

	AfterEach(func() {
		_ = client.Close()
		_ = srv.Close()
	})

	It("drains the read-ahead tail before touching the socket", func() {
		sock := transport.FromConn(srv)
		body := newRequestBody(context.Background(), sock, []byte("hello"), false, 5)

		buf := make([]byte, 10)
		n, err := body.Read(buf)
		Expect(err).To(BeNil())
		Expect(string(buf[:n])).To(Equal("hello"))

		n, err = body.Read(buf)
		Expect(n).To(Equal(0))
		Expect(err).To(Equal(io.EOF))
	})

	It("reads a Content-Length body across multiple socket writes", func() {
		sock := transport.FromConn(srv)
		body := newRequestBody(context.Background(), sock, nil, false, 11)

		go func() {
			_, _ = client.Write([]byte("hello "))
			_, _ = client.Write([]byte("world"))
		}()

		got, err := body.ReadAll()
		Expect(err).To(BeNil())
		Expect(string(got)).To(Equal("hello world"))
	})

	It("decodes a chunked body including chunk extensions and the trailer", func() {
		sock := transport.FromConn(srv)
		body := newRequestBody(context.Background(), sock, nil, true, 0)

		go func() {
			_, _ = client.Write([]byte("4;foo=bar\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"))
		}()

		got, err := body.ReadAll()
		Expect(err).To(BeNil())
		Expect(string(got)).To(Equal("Wikipedia"))
	})
})

var _ = Describe("preloadedBody", func() {
	It("serves buffered data then EOF, and ReadAll drains the remainder", func() {
		b := &preloadedBody{data: []byte("abcdef")}

		buf := make([]byte, 3)
		n, err := b.Read(buf)
		Expect(err).To(BeNil())
		Expect(string(buf[:n])).To(Equal("abc"))

		rest, err := b.ReadAll()
		Expect(err).To(BeNil())
		Expect(string(rest)).To(Equal("def"))

		n, err = b.Read(buf)
		Expect(n).To(Equal(0))
		Expect(err).To(Equal(io.EOF))
	})
})
