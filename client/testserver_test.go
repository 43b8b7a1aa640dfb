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

package client_test

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"strings"
)

// canned is a tiny one-request-per-connection HTTP/1.1 server used to drive
// Engine.Do against real sockets without pulling in net/http/httptest's own
// server loop, which would exercise a different response parser entirely.
type canned struct {
	ln          net.Listener
	handler     func(method, path string, headers map[string]string) []byte
	bodyHandler func(method, path string, headers map[string]string, body []byte) []byte
}

func newCannedServer(handler func(method, path string, headers map[string]string) []byte) (*canned, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &canned{ln: ln, handler: handler}
	go s.serve()
	return s, nil
}

// newBodyCannedServer is like newCannedServer but also hands the request
// body to the handler, for asserting that redirect hops carry it forward.
func newBodyCannedServer(handler func(method, path string, headers map[string]string, body []byte) []byte) (*canned, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &canned{ln: ln, bodyHandler: handler}
	go s.serve()
	return s, nil
}

func (s *canned) addr() string { return s.ln.Addr().String() }

func (s *canned) close() { _ = s.ln.Close() }

func (s *canned) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *canned) handleConn(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	reqLine, err := r.ReadString('\n')
	if err != nil {
		return
	}
	parts := strings.Fields(reqLine)
	if len(parts) < 2 {
		return
	}
	method, path := parts[0], parts[1]

	headers := make(map[string]string)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if i := strings.IndexByte(line, ':'); i >= 0 {
			headers[strings.ToLower(strings.TrimSpace(line[:i]))] = strings.TrimSpace(line[i+1:])
		}
	}

	var body []byte
	if n, err := strconv.Atoi(headers["content-length"]); err == nil && n > 0 {
		body = make([]byte, n)
		if _, err := io.ReadFull(r, body); err != nil {
			return
		}
	}

	if s.bodyHandler != nil {
		_, _ = conn.Write(s.bodyHandler(method, path, headers, body))
		return
	}
	_, _ = conn.Write(s.handler(method, path, headers))
}
