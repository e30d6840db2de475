// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracing

import (
	"github.com/prometheus/client_golang/prometheus"
	m "github.com/sett/tracer/pkg/metrics"
)

type metrics struct {
	// all metrics fields must be exported
	// to be able to return them by Metrics()
	// using reflection
	RootSpanCount      prometheus.Counter
	ChildSpanCount     prometheus.Counter
	ExtractCount       prometheus.Counter
	ExtractFailedCount prometheus.Counter
	InjectCount        prometheus.Counter
	InjectFailedCount  prometheus.Counter
	FlushFailedCount   prometheus.Counter
	TagPanicCount      prometheus.Counter
}

func newMetrics() metrics {
	subsystem := "tracing"

	return metrics{
		RootSpanCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "root_span_count",
			Help:      "Number of published root spans.",
		}),
		ChildSpanCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "child_span_count",
			Help:      "Number of spans started as children of an existing root.",
		}),
		ExtractCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "extract_count",
			Help:      "Number of span contexts extracted from carriers.",
		}),
		ExtractFailedCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "extract_failed_count",
			Help:      "Number of carriers from which no span context could be extracted.",
		}),
		InjectCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "inject_count",
			Help:      "Number of span contexts injected into carriers.",
		}),
		InjectFailedCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "inject_failed_count",
			Help:      "Number of failed span context injections.",
		}),
		FlushFailedCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "flush_failed_count",
			Help:      "Number of failed backend flushes.",
		}),
		TagPanicCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "tag_panic_count",
			Help:      "Number of recovered tag callback panics.",
		}),
	}
}

// Metrics returns the prometheus collectors of the Tracer.
func (t *Tracer) Metrics() []prometheus.Collector {
	if t == nil {
		return nil
	}
	return m.PrometheusCollectorsFromFields(t.metrics)
}
