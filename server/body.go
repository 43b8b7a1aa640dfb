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
	"bytes"
	"context"
	"io"
	"strconv"

	liberr "github.com/sabouaram/httpkit/errors"
	"github.com/sabouaram/httpkit/transport"
)

// requestBody is the deferred-read body reader handed to request.Request:
// it consumes the connection's read-ahead tail first, then the socket
// directly, honouring Content-Length or chunked framing.
type requestBody struct {
	ctx     context.Context
	sock    transport.Socket
	tail    []byte
	chunked bool
	remain  int64 // content-length bytes left, or current chunk bytes left when chunked
	done    bool
}

func newRequestBody(ctx context.Context, sock transport.Socket, tail []byte, chunked bool, length int64) *requestBody {
	return &requestBody{ctx: ctx, sock: sock, tail: tail, chunked: chunked, remain: length}
}

func (b *requestBody) Read(p []byte) (int, error) {
	if b.done {
		return 0, io.EOF
	}

	if b.chunked {
		return b.readChunked(p)
	}
	return b.readLength(p)
}

func (b *requestBody) readLength(p []byte) (int, error) {
	if b.remain <= 0 {
		b.done = true
		return 0, io.EOF
	}

	if len(b.tail) > 0 {
		n := copy(p, b.tail)
		b.tail = b.tail[n:]
		b.remain -= int64(n)
		return n, nil
	}

	max := int64(len(p))
	if max > b.remain {
		max = b.remain
	}
	n, err := b.sock.ReadSome(b.ctx, p[:max])
	b.remain -= int64(n)
	return n, err
}

func (b *requestBody) next(buf []byte) (int, error) {
	if len(b.tail) > 0 {
		n := copy(buf, b.tail)
		b.tail = b.tail[n:]
		return n, nil
	}
	return b.sock.ReadSome(b.ctx, buf)
}

func (b *requestBody) readByte() (byte, error) {
	var one [1]byte
	for {
		n, err := b.next(one[:])
		if n > 0 {
			return one[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

func (b *requestBody) readChunked(p []byte) (int, error) {
	if b.remain == 0 {
		size, err := b.readChunkSize()
		if err != nil {
			return 0, err
		}
		if size == 0 {
			b.done = true
			_ = b.discardTrailer()
			return 0, io.EOF
		}
		b.remain = size
	}

	max := int64(len(p))
	if max > b.remain {
		max = b.remain
	}

	n, err := b.readInto(p[:max])
	b.remain -= int64(n)

	if b.remain == 0 {
		// consume the chunk-terminating CRLF
		var crlf [2]byte
		_, _ = b.readInto(crlf[:])
	}

	return n, err
}

func (b *requestBody) readInto(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := b.next(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

func (b *requestBody) readChunkSize() (int64, error) {
	var line bytes.Buffer
	for {
		c, err := b.readByte()
		if err != nil {
			return 0, err
		}
		if c == '\n' {
			break
		}
		if c != '\r' {
			line.WriteByte(c)
		}
	}

	tok := line.Bytes()
	if i := bytes.IndexByte(tok, ';'); i >= 0 {
		tok = tok[:i]
	}

	n, err := strconv.ParseInt(string(tok), 16, 64)
	if err != nil {
		return 0, liberr.ParseError.Error()
	}
	return n, nil
}

func (b *requestBody) discardTrailer() error {
	for {
		c, err := b.readByte()
		if err != nil {
			return err
		}
		if c == '\n' {
			return nil
		}
	}
}

// preloadedBody wraps a fully-read body (the "pending body" dispatch
// strategy, where the connection already validated and buffered it before
// invoking the handler).
type preloadedBody struct {
	data []byte
	pos  int
}

func (b *preloadedBody) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

func (b *preloadedBody) ReadAll() ([]byte, error) {
	rest := b.data[b.pos:]
	b.pos = len(b.data)
	return rest, nil
}

// ReadAll drains the remainder of the body.
func (b *requestBody) ReadAll() ([]byte, error) {
	var buf bytes.Buffer
	tmp := make([]byte, 4096)
	for {
		n, err := b.Read(tmp)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return buf.Bytes(), err
		}
	}
}
