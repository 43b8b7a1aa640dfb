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

package certs_test

import (
	"crypto/tls"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/httpkit/certs"
	"github.com/sabouaram/httpkit/certs/cipher"
	"github.com/sabouaram/httpkit/certs/curves"
	"github.com/sabouaram/httpkit/certs/tlsversion"
)

var _ = Describe("cipher/curves/tlsversion enums", func() {
	It("round-trips cipher names", func() {
		Expect(cipher.AES_128_GCM_SHA256.String()).To(Equal("AES128-GCM-SHA256"))
		Expect(cipher.Check(cipher.AES_128_GCM_SHA256.Uint16())).To(BeTrue())
		Expect(cipher.Check(0xFFFF)).To(BeFalse())
	})

	It("round-trips curve names and TLS IDs", func() {
		Expect(curves.P256.String()).To(Equal("P-256"))
		Expect(curves.P256.TLS()).To(Equal(tls.CurveP256))
		Expect(curves.Check(uint16(tls.X25519))).To(BeTrue())
	})

	It("flags TLS 1.0/1.1 as legacy", func() {
		Expect(tlsversion.TLS10.IsLegacy()).To(BeTrue())
		Expect(tlsversion.TLS12.IsLegacy()).To(BeFalse())
		Expect(tlsversion.TLS12.TLS()).To(Equal(uint16(tls.VersionTLS12)))
	})
})

var _ = Describe("Policy.Apply", func() {
	It("overlays min/max version and filters cipher/curve lists", func() {
		p := certs.Policy{
			MinVersion: tlsversion.TLS12,
			MaxVersion: tlsversion.TLS13,
			Ciphers:    []cipher.Cipher{cipher.AES_128_GCM_SHA256, cipher.Unknown},
			Curves:     []curves.Curve{curves.X25519},
		}

		out := p.Apply(&tls.Config{})
		Expect(out.MinVersion).To(Equal(uint16(tls.VersionTLS12)))
		Expect(out.MaxVersion).To(Equal(uint16(tls.VersionTLS13)))
		Expect(out.CipherSuites).To(ConsistOf(uint16(cipher.AES_128_GCM_SHA256)))
		Expect(out.CurvePreferences).To(ConsistOf(tls.X25519))
	})

	It("leaves an untouched field alone when the Policy zero-values it", func() {
		base := &tls.Config{ServerName: "example.com"}
		out := certs.Policy{}.Apply(base)
		Expect(out.ServerName).To(Equal("example.com"))
		Expect(out.MinVersion).To(Equal(uint16(0)))
	})

	It("tolerates a nil input config", func() {
		out := certs.DefaultPolicy().Apply(nil)
		Expect(out).NotTo(BeNil())
		Expect(out.MinVersion).To(Equal(uint16(tls.VersionTLS12)))
	})
})

var _ = Describe("Registry", func() {
	It("matches an exact host", func() {
		r := certs.New(nil)
		cfg := &tls.Config{ServerName: "exact"}
		r.SetContext("api.example.com", cfg)

		got, ok := r.Get("api.example.com")
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(cfg))
	})

	It("matches a wildcard host", func() {
		r := certs.New(nil)
		cfg := &tls.Config{ServerName: "wild"}
		r.SetContext("*.example.com", cfg)

		got, ok := r.Get("api.example.com")
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(cfg))

		_, ok = r.Get("example.com")
		Expect(ok).To(BeFalse())
	})

	It("falls back to a lazily generated self-signed default", func() {
		r := certs.New(nil)
		cfg := r.Default()
		Expect(cfg).NotTo(BeNil())
		Expect(cfg.Certificates).NotTo(BeEmpty())
	})

	It("applies a Policy through SetContextWithPolicy", func() {
		r := certs.New(nil)
		r.SetContextWithPolicy("secure.example.com", &tls.Config{}, certs.DefaultPolicy())

		got, ok := r.Get("secure.example.com")
		Expect(ok).To(BeTrue())
		Expect(got.MinVersion).To(Equal(uint16(tls.VersionTLS12)))
	})

	It("dispatches SNI through ServerConfig.GetConfigForClient", func() {
		r := certs.New(nil)
		cfg := &tls.Config{ServerName: "pinned"}
		r.SetContext("pinned.example.com", cfg)

		sc := r.ServerConfig()
		got, err := sc.GetConfigForClient(&tls.ClientHelloInfo{ServerName: "pinned.example.com"})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeIdenticalTo(cfg))
	})
})
