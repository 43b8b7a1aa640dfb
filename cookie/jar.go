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

// Package cookie implements an RFC 6265 cookie store for the client
// engine: public-suffix-aware domain matching (golang.org/x/net/publicsuffix)
// and cookie selection for outgoing requests by domain, path and the Secure
// flag; the SameSite attribute is not considered.
package cookie

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Jar stores cookies per eTLD+1 domain, consulted and updated by the
// client engine on every redirect-following request chain.
type Jar struct {
	mu      sync.Mutex
	byDomain map[string][]*http.Cookie
}

func NewJar() *Jar {
	return &Jar{byDomain: make(map[string][]*http.Cookie)}
}

func effectiveDomain(host string) string {
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

// SetCookies records the Set-Cookie values from a response for u.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	dom := effectiveDomain(u.Hostname())
	existing := j.byDomain[dom]

	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(time.Now())) {
			existing = removeCookie(existing, c.Name)
			continue
		}
		existing = removeCookie(existing, c.Name)
		existing = append(existing, c)
	}

	j.byDomain[dom] = existing
}

func removeCookie(cookies []*http.Cookie, name string) []*http.Cookie {
	out := cookies[:0]
	for _, c := range cookies {
		if c.Name != name {
			out = append(out, c)
		}
	}
	return out
}

// Cookies returns the cookies applicable to u: matching domain/path, and
// Secure cookies only over https.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	dom := effectiveDomain(u.Hostname())
	var out []*http.Cookie
	for _, c := range j.byDomain[dom] {
		if c.Secure && u.Scheme != "https" {
			continue
		}
		if c.Path != "" && !strings.HasPrefix(u.Path, c.Path) {
			continue
		}
		out = append(out, c)
	}
	return out
}
