// Copyright 2024 DataFlood Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package clientconn

import (
	"context"
	"net"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/DataFlood/DataFlood/internal/handler"
	"github.com/DataFlood/DataFlood/internal/util/lazyerrors"
)

// NewListenerOpts are the options for creating a listener.
type NewListenerOpts struct {
	ListenAddr string
	Handler    *handler.Handler
	Logger     *zap.Logger
}

// Listener accepts client connections.
type Listener struct {
	opts *NewListenerOpts

	tcpListener net.Listener
	listening   chan struct{}

	accepted prometheus.Counter
	active   prometheus.Gauge
}

// NewListener creates a listener; Run starts accepting.
func NewListener(opts *NewListenerOpts) *Listener {
	return &Listener{
		opts:      opts,
		listening: make(chan struct{}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dataflood",
			Subsystem: "client",
			Name:      "accepts_total",
			Help:      "Total accepted client connections.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dataflood",
			Subsystem: "client",
			Name:      "connections_active",
			Help:      "Currently open client connections.",
		}),
	}
}

// Run accepts and serves connections until the context is canceled.
func (l *Listener) Run(ctx context.Context) error {
	var err error
	if l.tcpListener, err = net.Listen("tcp", l.opts.ListenAddr); err != nil {
		return lazyerrors.Error(err)
	}

	close(l.listening)

	l.opts.Logger.Info("listening", zap.String("addr", l.tcpListener.Addr().String()))

	go func() {
		<-ctx.Done()
		_ = l.tcpListener.Close()
	}()

	var wg sync.WaitGroup

	for {
		netConn, err := l.tcpListener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}

			l.opts.Logger.Warn("accept failed", zap.Error(err))
			continue
		}

		l.accepted.Inc()
		l.active.Inc()

		wg.Add(1)

		go func() {
			defer func() {
				l.active.Dec()
				wg.Done()
			}()

			c := newConn(netConn, l.opts.Handler, l.opts.Logger)

			if err := c.run(ctx); err != nil {
				c.l.Info("connection closed", zap.Error(err))
			} else {
				c.l.Debug("connection closed")
			}
		}()
	}

	wg.Wait()

	return nil
}

// Addr returns the address the listener is bound to; it blocks until Run
// has bound it.
func (l *Listener) Addr() net.Addr {
	<-l.listening
	return l.tcpListener.Addr()
}

// Describe implements prometheus.Collector.
func (l *Listener) Describe(ch chan<- *prometheus.Desc) {
	l.accepted.Describe(ch)
	l.active.Describe(ch)
}

// Collect implements prometheus.Collector.
func (l *Listener) Collect(ch chan<- prometheus.Metric) {
	l.accepted.Collect(ch)
	l.active.Collect(ch)
}

// check interfaces
var (
	_ prometheus.Collector = (*Listener)(nil)
)
