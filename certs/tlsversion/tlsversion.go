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

// Package tlsversion enumerates the minimum/maximum TLS protocol versions
// the registry will negotiate, mirroring crypto/tls's version constants.
// It also carries the "legacy protocols allowed" policy spec.md §6 calls for.
package tlsversion

import "crypto/tls"

type Version uint16

const VersionUnknown Version = 0

const (
	TLS10 = Version(tls.VersionTLS10)
	TLS11 = Version(tls.VersionTLS11)
	TLS12 = Version(tls.VersionTLS12)
	TLS13 = Version(tls.VersionTLS13)
)

var names = map[Version]string{
	TLS10: "tls10",
	TLS11: "tls11",
	TLS12: "tls12",
	TLS13: "tls13",
}

func (v Version) TLS() uint16 {
	return uint16(v)
}

func (v Version) String() string {
	if s, ok := names[v]; ok {
		return s
	}
	return "unknown"
}

func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Version) UnmarshalText(b []byte) error {
	s := string(b)
	for k, n := range names {
		if n == s {
			*v = k
			return nil
		}
	}
	*v = VersionUnknown
	return nil
}

// IsLegacy reports whether v predates TLS 1.2, the floor spec.md recommends
// unless a caller explicitly opts into legacy protocols.
func (v Version) IsLegacy() bool {
	return v == TLS10 || v == TLS11
}
