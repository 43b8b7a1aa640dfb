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
 */

// Package curves enumerates the elliptic curves usable in the registry's
// TLS config, mirroring crypto/tls.CurveID.
package curves

import "crypto/tls"

type Curve tls.CurveID

const Unknown Curve = 0

const (
	P256    = Curve(tls.CurveP256)
	P384    = Curve(tls.CurveP384)
	P521    = Curve(tls.CurveP521)
	X25519  = Curve(tls.X25519)
)

var names = map[Curve]string{
	P256:   "P-256",
	P384:   "P-384",
	P521:   "P-521",
	X25519: "X25519",
}

func Check(v uint16) bool {
	_, ok := names[Curve(v)]
	return ok
}

func (c Curve) TLS() tls.CurveID {
	return tls.CurveID(c)
}

func (c Curve) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "unknown"
}

func (c Curve) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Curve) UnmarshalText(b []byte) error {
	s := string(b)
	for k, v := range names {
		if v == s {
			*c = k
			return nil
		}
	}
	*c = Unknown
	return nil
}
