/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package config defines the shared tagging convention every component's
// Config struct follows: mapstructure/json/yaml/toml tags plus
// go-playground/validator `validate:"..."` tags, a Validate() method, a
// Clone() deep copy, and -- for configs that compose against a process-wide
// default -- a NewFrom(def) merge method, mirroring the teacher's
// ServerConfig.Clone/NewFrom and certificates.Config.NewFrom pattern.
package config

import (
	"sync"

	"github.com/go-playground/validator/v10"

	libdur "github.com/sabouaram/httpkit/duration"
	liberr "github.com/sabouaram/httpkit/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func v() *validator.Validate {
	validateOnce.Do(func() { validate = validator.New() })
	return validate
}

// ServerConfig describes one listener: bind address, TLS binding, and the
// connection-level limits server/conn.go enforces.
type ServerConfig struct {
	ListenAddr   string         `mapstructure:"listen_addr" json:"listen_addr" yaml:"listen_addr" toml:"listen_addr" validate:"required,hostname_port|tcp_addr"`
	TLSEnabled   bool           `mapstructure:"tls_enabled" json:"tls_enabled" yaml:"tls_enabled" toml:"tls_enabled"`
	IdleTimeout  libdur.Duration `mapstructure:"idle_timeout" json:"idle_timeout" yaml:"idle_timeout" toml:"idle_timeout" validate:"gte=0"`
	ReadTimeout  libdur.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout" toml:"read_timeout" validate:"gte=0"`
	MaxBodySize  int64          `mapstructure:"max_body_size" json:"max_body_size" yaml:"max_body_size" toml:"max_body_size" validate:"gte=0"`
	AllowedHosts []string       `mapstructure:"allowed_hosts" json:"allowed_hosts" yaml:"allowed_hosts" toml:"allowed_hosts"`
	DeniedHosts  []string       `mapstructure:"denied_hosts" json:"denied_hosts" yaml:"denied_hosts" toml:"denied_hosts"`
}

// DefaultServerConfig mirrors the teacher's pattern of a package-level
// default that NewFrom merges missing fields against.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:  ":8080",
		IdleTimeout: libdur.Seconds(90),
		ReadTimeout: libdur.Seconds(30),
		MaxBodySize: 8 * 1024 * 1024,
	}
}

func (c ServerConfig) Validate() liberr.Error {
	if err := v().Struct(c); err != nil {
		return liberr.ParseError.ErrorParent(err)
	}
	return nil
}

func (c ServerConfig) Clone() ServerConfig {
	out := c
	out.AllowedHosts = append([]string(nil), c.AllowedHosts...)
	out.DeniedHosts = append([]string(nil), c.DeniedHosts...)
	return out
}

// NewFrom merges zero-valued fields of c against def, the composable-
// default idiom certificates.Config.NewFrom and ServerConfig.NewFrom use
// in the teacher package.
func (c ServerConfig) NewFrom(def ServerConfig) (ServerConfig, liberr.Error) {
	out := c.Clone()

	if out.ListenAddr == "" {
		out.ListenAddr = def.ListenAddr
	}
	if out.IdleTimeout == 0 {
		out.IdleTimeout = def.IdleTimeout
	}
	if out.ReadTimeout == 0 {
		out.ReadTimeout = def.ReadTimeout
	}
	if out.MaxBodySize == 0 {
		out.MaxBodySize = def.MaxBodySize
	}
	if len(out.AllowedHosts) == 0 {
		out.AllowedHosts = append([]string(nil), def.AllowedHosts...)
	}
	if len(out.DeniedHosts) == 0 {
		out.DeniedHosts = append([]string(nil), def.DeniedHosts...)
	}

	if err := out.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return out, nil
}

// ClientConfig describes the outbound client engine's default behaviour.
type ClientConfig struct {
	Timeout         libdur.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout" toml:"timeout" validate:"gte=0"`
	Retries         int             `mapstructure:"retries" json:"retries" yaml:"retries" toml:"retries" validate:"gte=0,lte=10"`
	PoolTTL         libdur.Duration `mapstructure:"pool_ttl" json:"pool_ttl" yaml:"pool_ttl" toml:"pool_ttl" validate:"gte=0"`
	FollowRedirects bool            `mapstructure:"follow_redirects" json:"follow_redirects" yaml:"follow_redirects" toml:"follow_redirects"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:         libdur.Seconds(30),
		Retries:         2,
		PoolTTL:         libdur.Seconds(90),
		FollowRedirects: true,
	}
}

func (c ClientConfig) Validate() liberr.Error {
	if err := v().Struct(c); err != nil {
		return liberr.ParseError.ErrorParent(err)
	}
	return nil
}

func (c ClientConfig) Clone() ClientConfig { return c }

func (c ClientConfig) NewFrom(def ClientConfig) (ClientConfig, liberr.Error) {
	out := c
	if out.Timeout == 0 {
		out.Timeout = def.Timeout
	}
	if out.PoolTTL == 0 {
		out.PoolTTL = def.PoolTTL
	}
	if err := out.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return out, nil
}

// CertConfig is one entry of the certificate registry: a hostname pattern
// (exact, "*.suffix" wildcard, or a regular expression) plus the PEM material to serve
// for matching SNI, mirroring certificates.Config's cert/key field pair.
type CertConfig struct {
	HostPattern string `mapstructure:"host_pattern" json:"host_pattern" yaml:"host_pattern" toml:"host_pattern" validate:"required"`
	CertPEM     string `mapstructure:"cert_pem" json:"cert_pem" yaml:"cert_pem" toml:"cert_pem" validate:"required"`
	KeyPEM      string `mapstructure:"key_pem" json:"key_pem" yaml:"key_pem" toml:"key_pem" validate:"required"`
}

func (c CertConfig) Validate() liberr.Error {
	if err := v().Struct(c); err != nil {
		return liberr.ParseError.ErrorParent(err)
	}
	return nil
}

func (c CertConfig) Clone() CertConfig { return c }
