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
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/httpkit/certs"
)

func pemKeyPair(cn string) (certPEM, keyPEM []byte) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	Expect(err).To(BeNil())

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	Expect(err).To(BeNil())

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyDER := x509.MarshalPKCS1PrivateKey(key)
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: keyDER})
	return
}

var _ = Describe("Registry PEM and lifecycle operations", func() {
	It("Set installs a certificate parsed from a PEM pair", func() {
		r := certs.New(nil)
		certPEM, keyPEM := pemKeyPair("pem.example.com")

		Expect(r.Set("pem.example.com", certPEM, keyPEM)).To(BeNil())

		cfg, ok := r.Get("pem.example.com")
		Expect(ok).To(BeTrue())
		Expect(cfg.Certificates).To(HaveLen(1))
	})

	It("Set rejects a malformed PEM pair", func() {
		r := certs.New(nil)
		err := r.Set("bad.example.com", []byte("not a cert"), []byte("not a key"))
		Expect(err).NotTo(BeNil())
	})

	It("Remove drops an exact host entry", func() {
		r := certs.New(nil)
		r.SetContext("gone.example.com", &tls.Config{})
		r.Remove("gone.example.com")

		_, ok := r.Get("gone.example.com")
		Expect(ok).To(BeFalse())
	})

	It("Remove drops a regex/wildcard host entry by its original pattern", func() {
		r := certs.New(nil)
		r.SetContext("*.gone.example.com", &tls.Config{})
		r.Remove("*.gone.example.com")

		_, ok := r.Get("api.gone.example.com")
		Expect(ok).To(BeFalse())
	})

	It("RegisteredHosts lists both exact and pattern entries", func() {
		r := certs.New(nil)
		r.SetContext("exact.example.com", &tls.Config{})
		r.SetContext("*.wild.example.com", &tls.Config{})

		Expect(r.RegisteredHosts()).To(ConsistOf("exact.example.com", "*.wild.example.com"))
	})

	It("SetDefault overrides the lazily generated self-signed fallback", func() {
		r := certs.New(nil)
		want := &tls.Config{ServerName: "pinned-default"}
		r.SetDefault(want)

		Expect(r.Default()).To(BeIdenticalTo(want))
	})

	It("SetDefaultHost prefers an exact registered host over SetDefault", func() {
		r := certs.New(nil)
		hostCfg := &tls.Config{ServerName: "host-default"}
		r.SetContext("host.example.com", hostCfg)
		r.SetDefaultHost("host.example.com")
		r.SetDefault(&tls.Config{ServerName: "explicit-default"})

		Expect(r.Default()).To(BeIdenticalTo(hostCfg))
	})

	It("an arbitrary regex host pattern matches independently of the wildcard shorthand", func() {
		r := certs.New(nil)
		cfg := &tls.Config{ServerName: "regex"}
		r.SetContext(`^tenant-\d+\.example\.com$`, cfg)

		got, ok := r.Get("tenant-42.example.com")
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(cfg))

		_, ok = r.Get("tenant-abc.example.com")
		Expect(ok).To(BeFalse())
	})

	It("ServerConfig falls back to Default when the SNI name matches nothing", func() {
		r := certs.New(nil)
		r.SetContext("known.example.com", &tls.Config{ServerName: "known"})

		sc := r.ServerConfig()
		got, err := sc.GetConfigForClient(&tls.ClientHelloInfo{ServerName: "unknown.example.com"})
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Certificates).NotTo(BeEmpty())
	})
})
