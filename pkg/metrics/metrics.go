// Copyright 2025 The Kube Resource Orchestrator Authors
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

// Package metrics holds the Prometheus collectors of a build.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "jsbundle"

// BuildMetrics holds prometheus metrics for builds and their phases.
type BuildMetrics struct {
	phaseDuration   *prometheus.HistogramVec
	buildsTotal     *prometheus.CounterVec
	modules         prometheus.Gauge
	chunks          *prometheus.GaugeVec
	chunkBytes      *prometheus.GaugeVec
	transforms      prometheus.Counter
	transformHits   prometheus.Counter
	warningsTotal   *prometheus.CounterVec
	lastBuildSecond prometheus.Gauge
}

// New returns unregistered build metrics.
func New() *BuildMetrics {
	return &BuildMetrics{
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of build phases in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
			[]string{"phase", "result"}, // result is "success" or "error"
		),
		buildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_total",
				Help:      "Total number of builds.",
			},
			[]string{"result"},
		),
		modules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "modules",
			Help:      "Number of modules in the last module graph.",
		}),
		chunks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "chunks",
				Help:      "Number of chunks of the last build per kind.",
			},
			[]string{"kind"},
		),
		chunkBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "chunk_bytes",
				Help:      "Size of every emitted chunk of the last build in bytes.",
			},
			[]string{"chunk"},
		),
		transforms: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transforms_applied_total",
			Help:      "Total number of transform applications.",
		}),
		transformHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_cache_hits_total",
			Help:      "Total number of transform applications served from the cache.",
		}),
		warningsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "warnings_total",
				Help:      "Total number of build warnings per type.",
			},
			[]string{"type"},
		),
		lastBuildSecond: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_build_duration_seconds",
			Help:      "Duration of the last build in seconds.",
		}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObservePhase records the duration of a build phase.
func (m *BuildMetrics) ObservePhase(phase string, durationSeconds float64, err error) {
	m.phaseDuration.WithLabelValues(phase, result(err)).Observe(durationSeconds)
}

// ObserveBuild records a finished build.
func (m *BuildMetrics) ObserveBuild(durationSeconds float64, err error) {
	m.buildsTotal.WithLabelValues(result(err)).Inc()
	m.lastBuildSecond.Set(durationSeconds)
}

// SetModules records the size of the module graph.
func (m *BuildMetrics) SetModules(n int) {
	m.modules.Set(float64(n))
}

// AddTransforms records transform applications and cache hits.
func (m *BuildMetrics) AddTransforms(applied, cacheHits int64) {
	m.transforms.Add(float64(applied))
	m.transformHits.Add(float64(cacheHits))
}

// ChunkSample is the size of one emitted chunk.
type ChunkSample struct {
	Name string
	Kind string
	Size int64
}

// SetChunks replaces the chunk gauges with the chunks of the last build.
func (m *BuildMetrics) SetChunks(chunks []ChunkSample) {
	m.chunks.Reset()
	m.chunkBytes.Reset()
	for _, c := range chunks {
		m.chunks.WithLabelValues(c.Kind).Inc()
		m.chunkBytes.WithLabelValues(c.Name).Set(float64(c.Size))
	}
}

// ObserveWarning records a build warning.
func (m *BuildMetrics) ObserveWarning(kind string) {
	m.warningsTotal.WithLabelValues(kind).Inc()
}

// MustRegister registers the metrics with the given Prometheus registry.
func (m *BuildMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.phaseDuration,
		m.buildsTotal,
		m.modules,
		m.chunks,
		m.chunkBytes,
		m.transforms,
		m.transformHits,
		m.warningsTotal,
		m.lastBuildSecond,
	)
}

// WriteTextfile writes everything gathered from g to path in the text
// exposition format read by the node exporter textfile collector.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
