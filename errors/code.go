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

package errors

import "strconv"

// CodeError is a numeric error classification, deliberately shaped like an
// HTTP status code so parser/transport/client errors can carry a code a
// caller already knows how to read (400, 413, 500, 502, 504, 495, ...).
type CodeError uint16

const (
	UnknownError CodeError = 0

	// ParseError covers malformed request/response framing (spec.md §7 "Parse errors").
	ParseError CodeError = 400

	// BodyTooLarge is the over-sized-body rejection (413).
	BodyTooLarge CodeError = 413

	// ProtocolViolation covers WebSocket/HTTP protocol breaches that terminate a session.
	ProtocolViolation CodeError = 400

	// IOError covers aborted/reset/refused/host-not-found conditions (502).
	IOError CodeError = 502

	// TimeoutError is any deadline-exceeded condition (504).
	TimeoutError CodeError = 504

	// TLSError covers handshake failures (495, nginx's client-cert-error convention).
	TLSError CodeError = 495

	// UserError covers API misuse: responding twice, reading body after deferring it, etc. (500).
	UserError CodeError = 500
)

func (c CodeError) Uint16() uint16 {
	return uint16(c)
}

func (c CodeError) Int() int {
	return int(c)
}

func (c CodeError) String() string {
	return strconv.Itoa(c.Int())
}

// Error builds a new Error of this code, optionally wrapping parent causes.
func (c CodeError) Error(parent ...error) Error {
	e := &ers{c: c.Uint16(), t: caller(2)}
	e.Add(parent...)
	return e
}

// ErrorParent is a convenience form for a single parent cause.
func (c CodeError) ErrorParent(parent error) Error {
	e := &ers{c: c.Uint16(), t: caller(2)}
	e.Add(parent)
	return e
}
