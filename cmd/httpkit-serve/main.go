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

// Command httpkit-serve is a minimal demonstration entrypoint: it loads a
// config file through viper, builds a server.ServerConfig from it, and
// serves a couple of static handlers, optionally behind TLS via a
// certs.Registry. It carries no protocol logic of its own -- everything
// here is wiring.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sabouaram/httpkit/certs"
	httpconfig "github.com/sabouaram/httpkit/config"
	liblog "github.com/sabouaram/httpkit/logger"
	"github.com/sabouaram/httpkit/request"
	"github.com/sabouaram/httpkit/response"
	"github.com/sabouaram/httpkit/router"
	"github.com/sabouaram/httpkit/server"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:   "httpkit-serve",
		Short: "Serve static demo handlers using the httpkit server stack",
		RunE:  run,
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml/json/toml); defaults to ./httpkit-serve.yaml")
	root.PersistentFlags().String("listen", ":8080", "listen address")
	root.PersistentFlags().Bool("tls", false, "enable TLS using a self-signed default cert")
	_ = viper.BindPFlag("listen_addr", root.PersistentFlags().Lookup("listen"))
	_ = viper.BindPFlag("tls_enabled", root.PersistentFlags().Lookup("tls"))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (httpconfig.ServerConfig, error) {
	v := viper.GetViper()
	v.SetConfigName("httpkit-serve")
	v.AddConfigPath(".")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return httpconfig.ServerConfig{}, err
		}
	}

	cfg := httpconfig.DefaultServerConfig()
	if addr := v.GetString("listen_addr"); addr != "" {
		cfg.ListenAddr = addr
	}
	cfg.TLSEnabled = v.GetBool("tls_enabled")

	merged, verr := cfg.NewFrom(httpconfig.DefaultServerConfig())
	if verr != nil {
		return httpconfig.ServerConfig{}, verr
	}
	return merged, nil
}

func buildRouter() *router.Router {
	rt := router.New()
	rt.EnableCORS()

	rt.Register("GET", "/", func(req *request.Request, res *response.Response) {
		res.Status(200, "OK").WriteString("httpkit-serve is running\n")
		_ = res.Send()
	})
	rt.Register("GET", "/healthz", func(req *request.Request, res *response.Response) {
		res.Status(200, "OK").WriteString("ok\n")
		_ = res.Send()
	})

	return rt
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := liblog.Default()
	logFn := func() liblog.Logger { return log }

	srvCfg := server.ServerConfig{
		Network:     "tcp",
		Address:     cfg.ListenAddr,
		IdleTimeout: cfg.IdleTimeout.Time(),
		MaxBodySize: cfg.MaxBodySize,
		AllowIP:     cfg.AllowedHosts,
		DenyIP:      cfg.DeniedHosts,
		Router:      buildRouter(),
	}

	if cfg.TLSEnabled {
		reg := certs.New(logFn)
		srvCfg.Registry = reg
		srvCfg.TLS = reg.ServerConfig()
	}

	srv := server.New(srvCfg, logFn)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.Info("starting httpkit-serve", liblog.F("addr", cfg.ListenAddr), liblog.F("tls", cfg.TLSEnabled))
	return srv.Serve(ctx)
}
