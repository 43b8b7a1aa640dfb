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

// Package metrics exposes prometheus.Collectors for the stack's hot paths:
// listener accepts, server connections/requests, client pool hit rate,
// and long-lived websocket/SSE session counts. Collectors are registered
// against a caller-supplied prometheus.Registerer -- never the global
// default -- so the library stays embeddable in a host process that runs
// its own registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector this module ships. Register it once
// against the host application's registerer.
type Metrics struct {
	AcceptTotal      prometheus.Counter
	AcceptErrors     prometheus.Counter
	ConnectionsOpen  prometheus.Gauge
	RequestsInFlight prometheus.Gauge
	RequestsTotal    *prometheus.CounterVec
	PipelineDepth    prometheus.Histogram

	PoolSize  prometheus.Gauge
	PoolHits  prometheus.Counter
	PoolMiss  prometheus.Counter

	WebsocketSessions prometheus.Gauge
	SSESessions       prometheus.Gauge
}

// New builds a Metrics bundle with the given namespace prefix (e.g.
// "httpkit"); collectors are not yet registered.
func New(namespace string) *Metrics {
	return &Metrics{
		AcceptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "listener", Name: "accept_total",
			Help: "Total accepted connections.",
		}),
		AcceptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "listener", Name: "accept_errors_total",
			Help: "Total accept() errors.",
		}),
		ConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "server", Name: "connections_open",
			Help: "Currently open server connections.",
		}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "server", Name: "requests_in_flight",
			Help: "Requests currently being dispatched.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "server", Name: "requests_total",
			Help: "Total requests dispatched, by method and status class.",
		}, []string{"method", "status_class"}),
		PipelineDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "server", Name: "pipeline_depth",
			Help:    "Number of queued pipelined responses per connection at flush time.",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		}),
		PoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "client_pool", Name: "size",
			Help: "Idle sockets currently held in the client connection pool.",
		}),
		PoolHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "client_pool", Name: "hits_total",
			Help: "Pool lookups that returned a live socket.",
		}),
		PoolMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "client_pool", Name: "misses_total",
			Help: "Pool lookups that required a fresh dial.",
		}),
		WebsocketSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ws", Name: "sessions_open",
			Help: "Currently open websocket sessions.",
		}),
		SSESessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "sse", Name: "sessions_open",
			Help: "Currently open SSE subscriptions.",
		}),
	}
}

// MustRegister registers every collector against reg, panicking on a
// duplicate-registration error the same way prometheus.MustRegister does.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.AcceptTotal,
		m.AcceptErrors,
		m.ConnectionsOpen,
		m.RequestsInFlight,
		m.RequestsTotal,
		m.PipelineDepth,
		m.PoolSize,
		m.PoolHits,
		m.PoolMiss,
		m.WebsocketSessions,
		m.SSESessions,
	)
}
