// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracing

import (
	"net/http"
	"strings"

	"github.com/opentracing/opentracing-go"
	zipkinot "github.com/openzipkin-contrib/zipkin-go-opentracing"
)

// Carrier is a flat string map that transports span identity across process
// boundaries. It is used both for transport headers and for the side channel
// of RPC payloads.
type Carrier map[string]string

// Set implements opentracing.TextMapWriter.
func (c Carrier) Set(key, val string) {
	c[key] = val
}

// ForeachKey implements opentracing.TextMapReader.
func (c Carrier) ForeachKey(handler func(key, val string) error) error {
	for k, v := range c {
		if err := handler(k, v); err != nil {
			return err
		}
	}
	return nil
}

// CarrierFromHTTPHeaders returns a carrier with lower-cased header names and
// the first value of every header.
func CarrierFromHTTPHeaders(h http.Header) Carrier {
	c := make(Carrier, len(h))
	for k, v := range h {
		if len(v) == 0 {
			continue
		}
		c[strings.ToLower(k)] = v[0]
	}
	return c
}

// Extract decodes a span context from the carrier. A missing or malformed
// span identity is not an error to the caller, it only reports that no parent
// was found.
func (t *Tracer) Extract(c Carrier) (opentracing.SpanContext, bool) {
	if t == nil {
		t = noopTracer
	}
	if len(c) == 0 {
		return nil, false
	}

	sc, err := t.tracer.Extract(opentracing.TextMap, opentracing.TextMapCarrier(c))
	if err != nil || sc == nil || emptySpanContext(sc) {
		t.metrics.ExtractFailedCount.Inc()
		if t.logger != nil && err != nil {
			t.logger.Tracef("tracing: extract: %v", err)
		}
		return nil, false
	}
	t.metrics.ExtractCount.Inc()
	return sc, true
}

// emptySpanContext reports span contexts without a trace id. The zipkin
// propagator returns them without an error for carriers with no B3 headers.
func emptySpanContext(sc opentracing.SpanContext) bool {
	c, ok := sc.(zipkinot.SpanContext)
	return ok && c.TraceID.Empty()
}

// Inject writes the span context into the carrier and returns it. A nil
// carrier is allocated. Injection failures leave the carrier unchanged.
func (t *Tracer) Inject(sc opentracing.SpanContext, c Carrier) Carrier {
	if t == nil {
		t = noopTracer
	}
	if c == nil {
		c = make(Carrier)
	}
	if sc == nil {
		return c
	}

	if err := t.tracer.Inject(sc, opentracing.TextMap, c); err != nil {
		t.metrics.InjectFailedCount.Inc()
		if t.logger != nil {
			t.logger.Debugf("tracing: inject: %v", err)
		}
		return c
	}
	t.metrics.InjectCount.Inc()
	return c
}
