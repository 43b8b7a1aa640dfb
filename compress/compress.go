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

// Package compress provides the transparent gzip/deflate codec helpers
// shared by the response builder (outgoing) and the response parser
// (incoming Content-Encoding, spec.md §4.6's decode-then-strip-header step).
package compress

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"

	liberr "github.com/sabouaram/httpkit/errors"
)

// Encoding is a supported Content-Encoding token.
type Encoding string

const (
	Gzip    Encoding = "gzip"
	Deflate Encoding = "deflate"
	Identity Encoding = ""
)

// Negotiate picks the first of Gzip/Deflate present in an Accept-Encoding
// header value, or Identity if neither is offered.
func Negotiate(acceptEncoding string) Encoding {
	switch {
	case containsToken(acceptEncoding, "gzip"):
		return Gzip
	case containsToken(acceptEncoding, "deflate"):
		return Deflate
	default:
		return Identity
	}
}

func containsToken(header, token string) bool {
	for _, part := range bytes.Split([]byte(header), []byte(",")) {
		if string(bytes.TrimSpace(part)) == token {
			return true
		}
	}
	return false
}

// Compress encodes body with enc; Identity returns body unchanged.
func Compress(enc Encoding, body []byte) ([]byte, error) {
	var buf bytes.Buffer

	switch enc {
	case Gzip:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(body); err != nil {
			return nil, liberr.IOError.ErrorParent(err)
		}
		if err := w.Close(); err != nil {
			return nil, liberr.IOError.ErrorParent(err)
		}
	case Deflate:
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, liberr.IOError.ErrorParent(err)
		}
		if _, err := w.Write(body); err != nil {
			return nil, liberr.IOError.ErrorParent(err)
		}
		if err := w.Close(); err != nil {
			return nil, liberr.IOError.ErrorParent(err)
		}
	default:
		return body, nil
	}

	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(enc Encoding, body []byte) ([]byte, error) {
	var r io.ReadCloser
	var err error

	switch enc {
	case Gzip:
		r, err = gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, liberr.ParseError.ErrorParent(err)
		}
	case Deflate:
		r = flate.NewReader(bytes.NewReader(body))
	default:
		return body, nil
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, liberr.ParseError.ErrorParent(err)
	}
	return out, nil
}
