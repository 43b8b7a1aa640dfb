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

package certs

import (
	"crypto/tls"

	"github.com/sabouaram/httpkit/certs/cipher"
	"github.com/sabouaram/httpkit/certs/curves"
	"github.com/sabouaram/httpkit/certs/tlsversion"
)

// Policy carries the negotiation constraints spec.md §6's configuration
// table names (min/max TLS version, allowed cipher suites, allowed curve
// preferences) as a value applicable to any per-host *tls.Config the
// registry serves.
type Policy struct {
	MinVersion tlsversion.Version
	MaxVersion tlsversion.Version
	Ciphers    []cipher.Cipher
	Curves     []curves.Curve
}

// DefaultPolicy requires TLS 1.2 as a floor and leaves the cipher/curve
// list to crypto/tls's own secure defaults.
func DefaultPolicy() Policy {
	return Policy{MinVersion: tlsversion.TLS12, MaxVersion: tlsversion.TLS13}
}

// Apply overlays p onto cfg, returning a modified copy. Any Ciphers/Curves
// entry unrecognised by the cipher/curves packages is dropped rather than
// rejected, per the registry's tolerant-merge convention.
func (p Policy) Apply(cfg *tls.Config) *tls.Config {
	out := cfg.Clone()
	if out == nil {
		out = &tls.Config{}
	}

	if p.MinVersion != tlsversion.VersionUnknown {
		out.MinVersion = p.MinVersion.TLS()
	}
	if p.MaxVersion != tlsversion.VersionUnknown {
		out.MaxVersion = p.MaxVersion.TLS()
	}

	if len(p.Ciphers) > 0 {
		suites := make([]uint16, 0, len(p.Ciphers))
		for _, c := range p.Ciphers {
			if cipher.Check(uint16(c)) {
				suites = append(suites, uint16(c))
			}
		}
		out.CipherSuites = suites
	}

	if len(p.Curves) > 0 {
		ids := make([]tls.CurveID, 0, len(p.Curves))
		for _, c := range p.Curves {
			if curves.Check(uint16(c.TLS())) {
				ids = append(ids, c.TLS())
			}
		}
		out.CurvePreferences = ids
	}

	return out
}

// SetContextWithPolicy is SetContext with a Policy overlaid on cfg first,
// the entry point config.CertConfig-driven registrations use.
func (r *registry) SetContextWithPolicy(host string, cfg *tls.Config, p Policy) {
	r.SetContext(host, p.Apply(cfg))
}
