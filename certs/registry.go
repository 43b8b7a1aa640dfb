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

// Package certs is the per-hostname TLS certificate registry (spec.md §4.4):
// exact, wildcard (*.suffix) and regex hostname lookup driving a server's
// SNI callback, with a lazily generated self-signed default.
package certs

import (
	"crypto/tls"
	"fmt"
	"regexp"
	"strings"
	"sync"

	libatm "github.com/sabouaram/httpkit/atomic"
	liblog "github.com/sabouaram/httpkit/logger"
)

// Registry resolves a TLS *tls.Config for an incoming SNI hostname.
type Registry interface {
	// Set installs a context built from a PEM certificate/key pair for host.
	Set(host string, certPEM, keyPEM []byte) error
	// SetContext installs an already-built *tls.Config for host.
	SetContext(host string, cfg *tls.Config)
	// SetContextWithPolicy installs cfg for host with p's version/cipher/
	// curve constraints overlaid first.
	SetContextWithPolicy(host string, cfg *tls.Config, p Policy)
	// Get resolves host, trying the exact map then the regex list in
	// registration order.
	Get(host string) (*tls.Config, bool)
	Remove(host string)

	SetDefault(cfg *tls.Config)
	SetDefaultHost(host string)

	RegisteredHosts() []string

	// Default returns the configured default, lazily generating a
	// self-signed certificate the first time none has been configured.
	Default() *tls.Config

	// ServerConfig returns a *tls.Config wired with GetConfigForClient so a
	// net/tls server can dispatch SNI through this registry.
	ServerConfig() *tls.Config
}

type regEntry struct {
	host string
	re   *regexp.Regexp
	cfg  *tls.Config
}

type registry struct {
	log liblog.FuncLog

	mu      sync.RWMutex
	exact   map[string]*tls.Config
	regex   []regEntry
	def     libatm.Value[*tls.Config] // read on every SNI miss; stored far less often
	defHost string
}

// New creates an empty Registry. log may be nil.
func New(log liblog.FuncLog) Registry {
	return &registry{
		log:   log,
		exact: make(map[string]*tls.Config),
		def:   libatm.NewValue[*tls.Config](),
	}
}

func (r *registry) logger() liblog.Logger { return liblog.OrDiscard(r.log) }

func (r *registry) Set(host string, certPEM, keyPEM []byte) error {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return err
	}
	r.SetContext(host, &tls.Config{Certificates: []tls.Certificate{cert}})
	return nil
}

func compileHost(host string) *regexp.Regexp {
	if strings.HasPrefix(host, "*.") {
		suffix := regexp.QuoteMeta(host[2:])
		re, err := regexp.Compile(`^[^.]+\.` + suffix + `$`)
		if err != nil {
			return nil
		}
		return re
	}

	if strings.ContainsAny(host, `.^$*+?()[]{}|\`) && isRegexLike(host) {
		re, err := regexp.Compile(host)
		if err != nil {
			return nil
		}
		return re
	}

	return nil
}

// isRegexLike distinguishes a plain dotted hostname ("a.b.example.com") from
// an intentional regex, since "." alone is a valid and common hostname
// character that should not force a regex-list entry.
func isRegexLike(host string) bool {
	for _, r := range host {
		switch r {
		case '^', '$', '*', '+', '?', '(', ')', '[', ']', '{', '}', '|', '\\':
			return true
		}
	}
	return false
}

func (r *registry) SetContext(host string, cfg *tls.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if re := compileHost(host); re != nil {
		r.regex = append(r.regex, regEntry{host: host, re: re, cfg: cfg})
		return
	}

	r.exact[host] = cfg
}

func (r *registry) Get(host string) (*tls.Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.exact[host]; ok {
		return cfg, true
	}

	for _, e := range r.regex {
		if e.re.MatchString(host) {
			return e.cfg, true
		}
	}

	return nil, false
}

func (r *registry) Remove(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.exact, host)

	for i := range r.regex {
		if r.regex[i].host == host {
			r.regex = append(r.regex[:i], r.regex[i+1:]...)
			return
		}
	}
}

func (r *registry) SetDefault(cfg *tls.Config) {
	r.def.Store(cfg)
}

func (r *registry) SetDefaultHost(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defHost = host
}

func (r *registry) RegisteredHosts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hosts := make([]string, 0, len(r.exact)+len(r.regex))
	for h := range r.exact {
		hosts = append(hosts, h)
	}
	for _, e := range r.regex {
		hosts = append(hosts, e.host)
	}
	return hosts
}

func (r *registry) Default() *tls.Config {
	r.mu.RLock()
	if r.defHost != "" {
		if cfg, ok := r.exact[r.defHost]; ok {
			r.mu.RUnlock()
			return cfg
		}
	}
	r.mu.RUnlock()

	if cfg := r.def.Load(); cfg != nil {
		return cfg
	}

	r.logger().Warn(fmt.Sprintf("no default TLS context configured, generating a self-signed certificate for %s", defaultCN))
	cfg, err := selfSignedConfig(defaultCN)
	if err != nil {
		r.logger().Error("failed generating self-signed default certificate", liblog.F("error", err))
		return &tls.Config{}
	}

	r.def.Store(cfg)
	return cfg
}

func (r *registry) ServerConfig() *tls.Config {
	return &tls.Config{
		GetConfigForClient: func(hello *tls.ClientHelloInfo) (*tls.Config, error) {
			if cfg, ok := r.Get(hello.ServerName); ok {
				return cfg, nil
			}
			return r.Default(), nil
		},
	}
}
