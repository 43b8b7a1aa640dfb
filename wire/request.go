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

// Package wire implements the byte-level incremental HTTP/1.1 parsers
// (spec.md §4.5, §4.6): a request-side DFA for the server and a
// response-side DFA for the client, both fed one buffer at a time and
// returning need-more/complete/error without blocking on I/O themselves.
package wire

import (
	"strconv"
	"strings"

	liberr "github.com/sabouaram/httpkit/errors"
)

// Status is the outcome of one Feed call.
type Status uint8

const (
	NeedMore Status = iota
	Complete
	Errored
)

const maxHeaderBlock = 8 * 1024

type reqState uint8

const (
	reqMethod reqState = iota
	reqURI
	reqVersion
	reqHeaderName
	reqHeaderValue
	reqHeaderCR
	reqHeadersEnd
	reqBody
	reqDone
)

// Connection is the tri-state resolution of a Connection header: a peer
// that never sends one is neither asking to keep the socket open nor to
// close it, and the default that applies in that case depends on the
// protocol version (see Head.Persistent).
type Connection uint8

const (
	ConnUnset Connection = iota
	ConnKeepAlive
	ConnClose
)

// Head is the parsed request (or response) line plus headers, shared by
// both parser directions.
type Head struct {
	Method     string
	URI        string
	Version    string
	StatusCode int
	Reason     string

	Headers    []HeaderField
	ConnState  Connection
	Upgrade    bool
	IsChunked  bool
	ContentLen int64
	HasLength  bool
	IsEventSSE bool
	ContentEnc string
}

// Persistent resolves the tri-state Connection header against the
// declared HTTP version: an explicit keep-alive or close always wins, and
// an absent header defaults to persistent from HTTP/1.1 onward and to
// close for anything older, matching a plain origin server's behaviour
// when a client omits the header entirely.
func (h Head) Persistent() bool {
	switch h.ConnState {
	case ConnKeepAlive:
		return true
	case ConnClose:
		return false
	default:
		major, minor, ok := parseVersion(h.Version)
		return ok && (major > 1 || (major == 1 && minor >= 1))
	}
}

func parseVersion(v string) (major, minor int, ok bool) {
	const prefix = "HTTP/"
	if !strings.HasPrefix(v, prefix) {
		return 0, 0, false
	}
	rest := v[len(prefix):]
	parts := strings.SplitN(rest, ".", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	maj, err1 := strconv.Atoi(parts[0])
	min, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return maj, min, true
}

type HeaderField struct {
	Name  string
	Value string
}

func (h *Head) Header(name string) (string, bool) {
	for _, f := range h.Headers {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// RequestParser implements C5: the server-side request-line + headers DFA.
// It always parses in "headers only" mode -- the caller reads the body
// on demand once the head is complete, per spec.md §4.5.
type RequestParser struct {
	st   reqState
	head Head

	tok   strings.Builder
	hName string

	headerBytes int
}

func NewRequestParser() *RequestParser {
	return &RequestParser{}
}

func (p *RequestParser) Reset() {
	*p = RequestParser{}
}

// Head returns the parsed head once Feed has returned Complete.
func (p *RequestParser) Head() Head { return p.head }

// Feed consumes buf byte by byte, returning the status and the number of
// bytes consumed. On Complete, consumed may be less than len(buf); the
// remainder is the read-ahead tail the caller passes to the next stream.
func (p *RequestParser) Feed(buf []byte) (Status, int, error) {
	for i := 0; i < len(buf); i++ {
		b := buf[i]

		if p.st >= reqHeaderName && p.st <= reqHeadersEnd {
			p.headerBytes++
			if p.headerBytes > maxHeaderBlock {
				return Errored, i, liberr.ParseError.Error()
			}
		}

		switch p.st {
		case reqMethod:
			if b == ' ' {
				p.head.Method = p.tok.String()
				p.tok.Reset()
				if p.head.Method == "" || !isToken(p.head.Method) {
					return Errored, i, liberr.ParseError.Error()
				}
				p.st = reqURI
				continue
			}
			if !isTokenChar(b) {
				return Errored, i, liberr.ParseError.Error()
			}
			p.tok.WriteByte(b)

		case reqURI:
			if b == ' ' {
				p.head.URI = p.tok.String()
				p.tok.Reset()
				if p.head.URI == "" || p.head.URI[0] != '/' || strings.Contains(p.head.URI, "..") {
					return Errored, i, liberr.ParseError.Error()
				}
				p.st = reqVersion
				continue
			}
			if b < 0x21 || b == 0x7f {
				return Errored, i, liberr.ParseError.Error()
			}
			p.tok.WriteByte(b)

		case reqVersion:
			if b == '\r' {
				continue
			}
			if b == '\n' {
				p.head.Version = p.tok.String()
				p.tok.Reset()
				if !validVersion(p.head.Version) {
					return Errored, i, liberr.ParseError.Error()
				}
				p.st = reqHeaderName
				continue
			}
			p.tok.WriteByte(b)

		case reqHeaderName:
			if b == '\r' {
				p.st = reqHeadersEnd
				continue
			}
			if b == ':' {
				p.hName = p.tok.String()
				p.tok.Reset()
				if p.hName == "" || !isToken(p.hName) {
					return Errored, i, liberr.ParseError.Error()
				}
				p.st = reqHeaderValue
				continue
			}
			if !isTokenChar(b) {
				return Errored, i, liberr.ParseError.Error()
			}
			p.tok.WriteByte(b)

		case reqHeaderValue:
			if b == ' ' && p.tok.Len() == 0 {
				continue
			}
			if b == '\r' {
				p.addHeader(p.hName, strings.TrimSpace(p.tok.String()))
				p.tok.Reset()
				p.st = reqHeaderCR
				continue
			}
			p.tok.WriteByte(b)

		case reqHeaderCR:
			if b != '\n' {
				return Errored, i, liberr.ParseError.Error()
			}
			p.st = reqHeaderName

		case reqHeadersEnd:
			if b != '\n' {
				return Errored, i, liberr.ParseError.Error()
			}
			p.st = reqDone
			return Complete, i + 1, nil
		}
	}

	return NeedMore, len(buf), nil
}

func (p *RequestParser) addHeader(name, value string) {
	p.head.Headers = append(p.head.Headers, HeaderField{Name: name, Value: value})

	switch {
	case strings.EqualFold(name, "Connection"):
		lv := strings.ToLower(value)
		if strings.Contains(lv, "upgrade") {
			p.head.Upgrade = true
		}
		switch {
		case strings.Contains(lv, "close"):
			p.head.ConnState = ConnClose
		case strings.Contains(lv, "keep-alive"):
			p.head.ConnState = ConnKeepAlive
		}
	case strings.EqualFold(name, "Accept"):
		if strings.Contains(value, "text/event-stream") {
			p.head.IsEventSSE = true
		}
	case strings.EqualFold(name, "Content-Length"):
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || n < 0 {
			n = 0
		}
		p.head.ContentLen = n
		p.head.HasLength = true
	case strings.EqualFold(name, "Transfer-Encoding"):
		if strings.Contains(strings.ToLower(value), "chunked") {
			p.head.IsChunked = true
		}
	case strings.EqualFold(name, "Content-Encoding"):
		p.head.ContentEnc = strings.ToLower(value)
	}
}

func isTokenChar(b byte) bool {
	if b <= 0x20 || b == 0x7f {
		return false
	}
	switch b {
	case '(', ')', '<', '>', '@', ',', ';', ':', '\\', '"', '/', '[', ']', '?', '=', '{', '}':
		return false
	}
	return true
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenChar(s[i]) {
			return false
		}
	}
	return true
}

func validVersion(v string) bool {
	const prefix = "HTTP/"
	if !strings.HasPrefix(v, prefix) {
		return false
	}
	rest := v[len(prefix):]
	parts := strings.SplitN(rest, ".", 2)
	if len(parts) != 2 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, c := range p {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}
