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

// Package cipher enumerates the TLS cipher suites the certificate registry
// is allowed to negotiate. It mirrors crypto/tls's suite IDs so a Config can
// carry a human-readable, validated list in JSON/YAML/TOML.
package cipher

import "crypto/tls"

type Cipher uint16

const Unknown Cipher = 0

const (
	ECDHE_RSA_WITH_AES_128_GCM_SHA256       = Cipher(tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256)
	ECDHE_RSA_WITH_AES_256_GCM_SHA384       = Cipher(tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384)
	ECDHE_ECDSA_WITH_AES_128_GCM_SHA256     = Cipher(tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256)
	ECDHE_ECDSA_WITH_AES_256_GCM_SHA384     = Cipher(tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384)
	ECDHE_RSA_WITH_CHACHA20_POLY1305        = Cipher(tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305)
	ECDHE_ECDSA_WITH_CHACHA20_POLY1305      = Cipher(tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305)
	AES_128_GCM_SHA256                      = Cipher(tls.TLS_AES_128_GCM_SHA256)
	AES_256_GCM_SHA384                      = Cipher(tls.TLS_AES_256_GCM_SHA384)
	CHACHA20_POLY1305_SHA256                = Cipher(tls.TLS_CHACHA20_POLY1305_SHA256)
)

var names = map[Cipher]string{
	ECDHE_RSA_WITH_AES_128_GCM_SHA256:   "ECDHE-RSA-AES128-GCM-SHA256",
	ECDHE_RSA_WITH_AES_256_GCM_SHA384:   "ECDHE-RSA-AES256-GCM-SHA384",
	ECDHE_ECDSA_WITH_AES_128_GCM_SHA256: "ECDHE-ECDSA-AES128-GCM-SHA256",
	ECDHE_ECDSA_WITH_AES_256_GCM_SHA384: "ECDHE-ECDSA-AES256-GCM-SHA384",
	ECDHE_RSA_WITH_CHACHA20_POLY1305:    "ECDHE-RSA-CHACHA20-POLY1305",
	ECDHE_ECDSA_WITH_CHACHA20_POLY1305:  "ECDHE-ECDSA-CHACHA20-POLY1305",
	AES_128_GCM_SHA256:                  "AES128-GCM-SHA256",
	AES_256_GCM_SHA384:                  "AES256-GCM-SHA384",
	CHACHA20_POLY1305_SHA256:            "CHACHA20-POLY1305-SHA256",
}

// Check reports whether v is a cipher suite this package recognises.
func Check(v uint16) bool {
	_, ok := names[Cipher(v)]
	return ok
}

func (c Cipher) Uint16() uint16 {
	return uint16(c)
}

func (c Cipher) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "unknown"
}

func (c Cipher) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Cipher) UnmarshalText(b []byte) error {
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
