/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package stats

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/facebook/ptpsim/sim"
)

// PrometheusExporter exposes the live state of a running simulation as
// gauges on a /metrics endpoint
type PrometheusExporter struct {
	registry   *prometheus.Registry
	listenPort int

	offsetNs  prometheus.Gauge
	delayNs   prometheus.Gauge
	freqPPB   prometheus.Gauge
	stage     prometheus.Gauge
	syncCount prometheus.Counter
}

// NewPrometheusExporter creates a new instance of PrometheusExporter
func NewPrometheusExporter(listenPort int) *PrometheusExporter {
	e := &PrometheusExporter{
		registry:   prometheus.NewRegistry(),
		listenPort: listenPort,
		offsetNs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ptpsim_offset_ns",
			Help: "synchronized error between master and slave, ns",
		}),
		delayNs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ptpsim_delay_ns",
			Help: "filtered one way delay estimate, ns",
		}),
		freqPPB: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ptpsim_freq_offset_ppb",
			Help: "slave counting rate offset from nominal, ppb",
		}),
		stage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ptpsim_sync_stage",
			Help: "current synchronization stage, 1 to 4",
		}),
		syncCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ptpsim_sync_rx_total",
			Help: "SYNC receptions handled",
		}),
	}
	e.registry.MustRegister(e.offsetNs, e.delayNs, e.freqPPB, e.stage, e.syncCount)
	return e
}

// Observe updates the gauges from one simulation output
func (e *PrometheusExporter) Observe(o sim.Output) {
	e.offsetNs.Set(o.ActualNsError)
	e.delayNs.Set(o.FilteredDelayNs)
	e.freqPPB.Set(o.NormFreqOffset * 1e9)
	e.stage.Set(float64(o.Stage))
	e.syncCount.Inc()
}

// Start serves the /metrics endpoint until the context is canceled
func (e *PrometheusExporter) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		e.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	))
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", e.listenPort),
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
