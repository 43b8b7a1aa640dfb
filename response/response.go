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

// Package response is the fluent response builder handlers use to produce
// reply frames: status/header setting, buffered or chunked bodies, and
// transparent compression. The upgrade handover into WebSocket or SSE is
// not part of this package; server.Connection.ReleaseSocket provides it.
package response

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Writer is the sink a Response flushes frames to -- implemented by a
// server connection's stream (see server.Stream).
type Writer interface {
	WriteHead(statusCode int, reason string, headers [][2]string) error
	WriteBody(b []byte) error
	WriteChunk(b []byte) error
	EndChunked() error
	End() error
}

// Response is the fluent builder: each setter returns the receiver so
// calls chain, mirroring the teacher library's *Opt()-style config builders.
type Response struct {
	w Writer

	status  int
	reason  string
	headers [][2]string

	body       bytes.Buffer
	chunked    bool
	compressor string // "", "gzip", "deflate"

	sent bool
}

func New(w Writer) *Response {
	return &Response{w: w, status: 200, reason: "OK"}
}

func (r *Response) Status(code int, reason string) *Response {
	r.status = code
	r.reason = reason
	return r
}

func (r *Response) Header(name, value string) *Response {
	r.headers = append(r.headers, [2]string{name, value})
	return r
}

func (r *Response) Write(b []byte) *Response {
	r.body.Write(b)
	return r
}

func (r *Response) WriteString(s string) *Response {
	r.body.WriteString(s)
	return r
}

// JSON marshals v and sets Content-Type application/json.
func (r *Response) JSON(v interface{}) *Response {
	b, err := json.Marshal(v)
	if err != nil {
		r.status = 500
		r.reason = "Internal Server Error"
		return r
	}
	r.Header("Content-Type", "application/json")
	r.body.Reset()
	r.body.Write(b)
	return r
}

// Chunked switches this response to Transfer-Encoding: chunked framing.
func (r *Response) Chunked() *Response {
	r.chunked = true
	return r
}

// Compress negotiates gzip or deflate against the request's Accept-Encoding
// value, transparently compressing the buffered body.
func (r *Response) Compress(acceptEncoding string) *Response {
	lv := strings.ToLower(acceptEncoding)
	switch {
	case strings.Contains(lv, "gzip"):
		r.compressor = "gzip"
	case strings.Contains(lv, "deflate"):
		r.compressor = "deflate"
	}
	return r
}

// Send flushes status, headers, and body through the Writer.
func (r *Response) Send() error {
	if r.sent {
		return fmt.Errorf("response already sent")
	}
	r.sent = true

	body := r.body.Bytes()
	if r.compressor != "" && !r.chunked {
		compressed, ok := compress(r.compressor, body)
		if ok {
			body = compressed
			r.Header("Content-Encoding", r.compressor)
		}
	}

	if !r.chunked {
		r.Header("Content-Length", strconv.Itoa(len(body)))
	} else {
		r.Header("Transfer-Encoding", "chunked")
	}

	if err := r.w.WriteHead(r.status, r.reason, r.headers); err != nil {
		return err
	}

	if r.chunked {
		if len(body) > 0 {
			if err := r.w.WriteChunk(body); err != nil {
				return err
			}
		}
		return r.w.EndChunked()
	}

	if err := r.w.WriteBody(body); err != nil {
		return err
	}
	return r.w.End()
}

// SendChunk writes one chunk of a chunked response, for handlers that
// stream output incrementally; the first call sends the head with
// Transfer-Encoding: chunked.
func (r *Response) SendChunk(b []byte) error {
	if !r.sent {
		r.chunked = true
		r.Header("Transfer-Encoding", "chunked")
		if err := r.w.WriteHead(r.status, r.reason, r.headers); err != nil {
			return err
		}
		r.sent = true
	}
	return r.w.WriteChunk(b)
}

func (r *Response) EndStream() error {
	return r.w.EndChunked()
}

func compress(kind string, body []byte) ([]byte, bool) {
	var buf bytes.Buffer

	switch kind {
	case "gzip":
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(body); err != nil {
			return nil, false
		}
		if err := gw.Close(); err != nil {
			return nil, false
		}
	case "deflate":
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, false
		}
		if _, err := fw.Write(body); err != nil {
			return nil, false
		}
		if err := fw.Close(); err != nil {
			return nil, false
		}
	default:
		return nil, false
	}

	return buf.Bytes(), true
}
