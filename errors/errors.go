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

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

type ers struct {
	c uint16
	e string
	p []Error
	t runtime.Frame
}

func (e *ers) Add(parent ...error) {
	for _, v := range parent {
		if v == nil {
			continue
		}

		if er, ok := v.(*ers); ok {
			if e == er {
				continue
			}
			e.p = append(e.p, er)
		} else if err, ok := v.(Error); ok {
			e.p = append(e.p, err)
		} else {
			e.p = append(e.p, &ers{e: v.Error()})
		}
	}
}

func (e *ers) Code() uint16 {
	return e.c
}

func (e *ers) IsCode(c CodeError) bool {
	return e.c == c.Uint16()
}

func (e *ers) HasCode(c CodeError) bool {
	if e.IsCode(c) {
		return true
	}

	for _, p := range e.p {
		if p.HasCode(c) {
			return true
		}
	}

	return false
}

func (e *ers) HasParent() bool {
	return len(e.p) > 0
}

func (e *ers) GetParent(withSelf bool) []error {
	res := make([]error, 0, len(e.p)+1)

	if withSelf {
		res = append(res, &ers{c: e.c, e: e.e, t: e.t})
	}

	for _, p := range e.p {
		res = append(res, p.GetParent(true)...)
	}

	return res
}

func (e *ers) GetTrace() string {
	if e.t.File != "" {
		return fmt.Sprintf("%s#%d", filterPath(e.t.File), e.t.Line)
	} else if e.t.Function != "" {
		return fmt.Sprintf("%s#%d", e.t.Function, e.t.Line)
	}

	return ""
}

func (e *ers) Unwrap() []error {
	if len(e.p) == 0 {
		return nil
	}

	res := make([]error, 0, len(e.p))
	for _, p := range e.p {
		res = append(res, p)
	}

	return res
}

func (e *ers) Error() string {
	var b strings.Builder

	if e.c != 0 {
		fmt.Fprintf(&b, "[%d] ", e.c)
	}

	if e.e != "" {
		b.WriteString(e.e)
	} else {
		b.WriteString(CodeError(e.c).messageOrDefault())
	}

	if t := e.GetTrace(); t != "" {
		fmt.Fprintf(&b, " (at %s)", t)
	}

	for _, p := range e.p {
		fmt.Fprintf(&b, ": %s", p.Error())
	}

	return b.String()
}

func (c CodeError) messageOrDefault() string {
	switch c {
	case 0:
		return "unknown error"
	default:
		return "error " + c.String()
	}
}

// New builds a parent-less Error wrapping a plain message, same idiom as
// errors.New but returning the chainable Error type.
func New(msg string) Error {
	return &ers{e: msg, t: caller(2)}
}

// Is supports errors.Is(err, target) against any Error in a parent chain.
func (e *ers) Is(target error) bool {
	if target == nil {
		return false
	}

	if oe, ok := target.(*ers); ok {
		return e.c != 0 && e.c == oe.c && e.e == oe.e
	}

	return errors.New(e.Error()).Error() == target.Error()
}
