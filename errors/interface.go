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

// Package errors provides coded, parent-chaining errors for the httpkit
// protocol engine: a small numeric code (HTTP-status-shaped), a captured
// call site, and an optional list of parent causes, compatible with the
// standard library's errors.Is/errors.As via Unwrap.
package errors

// Error is the coded, chainable error every package boundary in this module
// returns instead of a bare error.
type Error interface {
	error

	// Code returns this error's own numeric code (0 if none).
	Code() uint16

	// IsCode reports whether this error's own code matches c.
	IsCode(c CodeError) bool

	// HasCode reports whether this error or any parent carries code c.
	HasCode(c CodeError) bool

	// Add appends parent causes to this error's chain.
	Add(parent ...error)

	// HasParent reports whether any parent causes are recorded.
	HasParent() bool

	// GetParent flattens this error's parent chain; withSelf also includes
	// a copy of the receiver (with its own parents stripped) at index 0.
	GetParent(withSelf bool) []error

	// GetTrace returns "file#line" (or "func#line") of the call site that
	// constructed this error, empty if unavailable.
	GetTrace() string

	// Unwrap exposes the parent chain to errors.Is/errors.As.
	Unwrap() []error
}

var _ Error = (*ers)(nil)
