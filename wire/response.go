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

package wire

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"strconv"
	"strings"

	liberr "github.com/sabouaram/httpkit/errors"
)

const defaultMaxBody = 8 * 1024 * 1024

type respState uint8

const (
	respVersion respState = iota
	respCode
	respReason
	respHeaderName
	respHeaderValue
	respHeaderCR
	respHeadersEnd
	respBodyLength
	respChunkSize
	respChunkExt
	respChunkData
	respChunkCR
	respChunkTrailerCR
	respDone
)

// StreamFunc is invoked with every batch of body bytes as they arrive; it
// returns false to abort the transfer. total is 0 when unknown (chunked).
type StreamFunc func(chunk []byte, downloaded, total int64) bool

// ResponseParser implements C6: the client-side status-line + headers +
// body DFA, supporting chunked transfer, length-delimited bodies, HEAD
// short-circuiting, and an optional streaming callback.
type ResponseParser struct {
	st   respState
	head Head

	tok   strings.Builder
	hName string

	headerBytes int
	maxBody     int64
	isHead      bool

	body       bytes.Buffer
	downloaded int64
	remaining  int64
	chunkExtOK bool

	stream StreamFunc
}

// Option configures a ResponseParser before Feed is called.
type Option func(*ResponseParser)

// WithMaxBody overrides the default 8 MiB body limit.
func WithMaxBody(n int64) Option {
	return func(p *ResponseParser) { p.maxBody = n }
}

// WithHeadRequest marks the response as answering a HEAD request: the body
// is always empty regardless of headers.
func WithHeadRequest() Option {
	return func(p *ResponseParser) { p.isHead = true }
}

// WithStream installs a streaming body callback; when set, body bytes are
// not accumulated in memory.
func WithStream(fn StreamFunc) Option {
	return func(p *ResponseParser) { p.stream = fn }
}

func NewResponseParser(opts ...Option) *ResponseParser {
	p := &ResponseParser{maxBody: defaultMaxBody}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *ResponseParser) Head() Head   { return p.head }
func (p *ResponseParser) Body() []byte { return p.body.Bytes() }

// Feed consumes buf, returning the parse status and bytes consumed.
func (p *ResponseParser) Feed(buf []byte) (Status, int, error) {
	for i := 0; i < len(buf); i++ {
		b := buf[i]

		if p.st >= respHeaderName && p.st <= respHeadersEnd {
			p.headerBytes++
			if p.headerBytes > maxHeaderBlock {
				return Errored, i, liberr.ParseError.Error()
			}
		}

		switch p.st {
		case respVersion:
			if b == ' ' {
				p.head.Version = p.tok.String()
				p.tok.Reset()
				if !validVersion(p.head.Version) {
					return Errored, i, liberr.ParseError.Error()
				}
				p.st = respCode
				continue
			}
			p.tok.WriteByte(b)

		case respCode:
			if b == ' ' {
				n, err := strconv.Atoi(p.tok.String())
				if err != nil {
					return Errored, i, liberr.ParseError.Error()
				}
				p.head.StatusCode = n
				p.tok.Reset()
				p.st = respReason
				continue
			}
			p.tok.WriteByte(b)

		case respReason:
			if b == '\r' {
				continue
			}
			if b == '\n' {
				p.head.Reason = p.tok.String()
				p.tok.Reset()
				p.st = respHeaderName
				continue
			}
			p.tok.WriteByte(b)

		case respHeaderName:
			if b == '\r' {
				p.st = respHeadersEnd
				continue
			}
			if b == ':' {
				p.hName = p.tok.String()
				p.tok.Reset()
				p.st = respHeaderValue
				continue
			}
			p.tok.WriteByte(b)

		case respHeaderValue:
			if b == ' ' && p.tok.Len() == 0 {
				continue
			}
			if b == '\r' {
				p.addHeader(p.hName, strings.TrimSpace(p.tok.String()))
				p.tok.Reset()
				p.st = respHeaderCR
				continue
			}
			p.tok.WriteByte(b)

		case respHeaderCR:
			if b != '\n' {
				return Errored, i, liberr.ParseError.Error()
			}
			p.st = respHeaderName

		case respHeadersEnd:
			if b != '\n' {
				return Errored, i, liberr.ParseError.Error()
			}
			return p.finishHeaders(buf, i+1)

		case respBodyLength:
			n, consumed, status, err := p.feedLength(buf[i:])
			if err != nil {
				return Errored, i, err
			}
			if status == Complete {
				return Complete, i + consumed, nil
			}
			i += n - 1

		case respChunkSize, respChunkExt, respChunkData, respChunkCR, respChunkTrailerCR:
			consumed, status, err := p.feedChunked(buf[i:])
			if err != nil {
				return Errored, i, err
			}
			if status == Complete {
				return Complete, i + consumed, nil
			}
			return NeedMore, len(buf), nil
		}
	}

	return NeedMore, len(buf), nil
}

func (p *ResponseParser) addHeader(name, value string) {
	p.head.Headers = append(p.head.Headers, HeaderField{Name: name, Value: value})

	switch {
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
	case strings.EqualFold(name, "Connection"):
		lv := strings.ToLower(value)
		switch {
		case strings.Contains(lv, "close"):
			p.head.ConnState = ConnClose
		case strings.Contains(lv, "keep-alive"):
			p.head.ConnState = ConnKeepAlive
		}
	case strings.EqualFold(name, "Content-Encoding"):
		p.head.ContentEnc = strings.ToLower(value)
	}
}

func (p *ResponseParser) finishHeaders(buf []byte, consumed int) (Status, int, error) {
	if p.isHead {
		p.decompressIfNeeded()
		return Complete, consumed, nil
	}

	if p.head.IsChunked {
		p.st = respChunkSize
	} else if p.head.HasLength {
		if p.head.ContentLen == 0 {
			p.decompressIfNeeded()
			return Complete, consumed, nil
		}
		p.remaining = p.head.ContentLen
		p.st = respBodyLength
	} else {
		p.decompressIfNeeded()
		return Complete, consumed, nil
	}

	rest := buf[consumed:]
	if len(rest) == 0 {
		return NeedMore, consumed, nil
	}

	st, n, err := p.Feed(rest)
	return st, consumed + n, err
}

func (p *ResponseParser) feedLength(buf []byte) (consumed int, _ int, status Status, err error) {
	n := int64(len(buf))
	if n > p.remaining {
		n = p.remaining
	}

	if err := p.emit(buf[:n]); err != nil {
		return int(n), 0, Errored, err
	}

	p.remaining -= n
	if p.remaining == 0 {
		p.decompressIfNeeded()
		return int(n), 0, Complete, nil
	}
	return int(n), 0, NeedMore, nil
}

func (p *ResponseParser) emit(b []byte) error {
	p.downloaded += int64(len(b))

	if p.stream != nil {
		total := p.head.ContentLen
		if p.head.IsChunked {
			total = 0
		}
		if !p.stream(b, p.downloaded, total) {
			return liberr.UserError.Error()
		}
		return nil
	}

	if int64(p.body.Len())+int64(len(b)) > p.maxBody {
		return liberr.BodyTooLarge.Error()
	}
	p.body.Write(b)
	return nil
}

// feedChunked drives the chunked-transfer sub-DFA: hex-size [;ext] CRLF,
// that many bytes, CRLF, repeat until a zero-size chunk, then an optional
// trailer and the final CRLF.
func (p *ResponseParser) feedChunked(buf []byte) (int, Status, error) {
	for i := 0; i < len(buf); i++ {
		b := buf[i]

		switch p.st {
		case respChunkSize:
			if b == '\r' {
				n, err := strconv.ParseInt(p.tok.String(), 16, 64)
				if err != nil {
					return i, Errored, liberr.ParseError.Error()
				}
				p.tok.Reset()
				p.remaining = n
				p.st = respChunkCR
				continue
			}
			if b == ';' {
				p.st = respChunkExt
				continue
			}
			if !isHex(b) {
				return i, Errored, liberr.ParseError.Error()
			}
			p.tok.WriteByte(b)

		case respChunkExt:
			// chunk extensions are ignored; malformed extension bytes are
			// skipped rather than rejected.
			if b == '\r' {
				n, err := strconv.ParseInt(p.tok.String(), 16, 64)
				if err != nil {
					return i, Errored, liberr.ParseError.Error()
				}
				p.tok.Reset()
				p.remaining = n
				p.st = respChunkCR
			}

		case respChunkCR:
			if b != '\n' {
				return i, Errored, liberr.ParseError.Error()
			}
			if p.remaining == 0 {
				p.st = respChunkTrailerCR
			} else {
				p.st = respChunkData
			}

		case respChunkData:
			avail := int64(len(buf) - i)
			n := p.remaining
			if n > avail {
				n = avail
			}
			if err := p.emit(buf[i : i+int(n)]); err != nil {
				return i, Errored, err
			}
			i += int(n) - 1
			p.remaining -= n
			if p.remaining == 0 {
				p.st = respChunkTrailerCR // consume the chunk-terminating CRLF
				p.chunkExtOK = true
			}

		case respChunkTrailerCR:
			if p.chunkExtOK {
				// the CRLF following chunk data, not the final trailer.
				if b == '\n' {
					p.chunkExtOK = false
					p.st = respChunkSize
				}
				continue
			}
			if b == '\n' {
				if p.tok.Len() > 0 {
					// end of a trailer header line; trailers are discarded.
					p.tok.Reset()
					continue
				}
				p.decompressIfNeeded()
				return i + 1, Complete, nil
			}
			if b != '\r' {
				p.tok.WriteByte(b)
			}
		}
	}

	return len(buf), NeedMore, nil
}

func isHex(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func (p *ResponseParser) decompressIfNeeded() {
	if p.stream != nil || p.head.ContentEnc == "" {
		return
	}

	var r io.Reader
	switch p.head.ContentEnc {
	case "gzip":
		gr, err := gzip.NewReader(bytes.NewReader(p.body.Bytes()))
		if err != nil {
			return
		}
		defer gr.Close()
		r = gr
	case "deflate":
		r = flate.NewReader(bytes.NewReader(p.body.Bytes()))
	default:
		return
	}

	out, err := io.ReadAll(r)
	if err != nil {
		return
	}

	p.body.Reset()
	p.body.Write(out)
	p.head.ContentEnc = ""
}
