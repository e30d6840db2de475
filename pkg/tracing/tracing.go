// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracing

import (
	"context"
	"errors"
	"net/http"

	"github.com/opentracing/opentracing-go"
	zipkinot "github.com/openzipkin-contrib/zipkin-go-opentracing"
	"github.com/sett/tracer/pkg/logging"
	"github.com/sirupsen/logrus"
	"github.com/uber/jaeger-client-go"
	"resenje.org/singleflight"
)

var (
	// ErrContextNotFound is returned when tracing context is not present
	// in a carrier, HTTP headers or context.
	ErrContextNotFound = errors.New("tracing context not found")

	// noopTracer is the tracer that does nothing to handle a nil Tracer usage.
	noopTracer = &Tracer{tracer: new(opentracing.NoopTracer), metrics: newMetrics()}
)

// contextKey is used to reference a tracing context span as context value.
type contextKey struct{}

// LogField is the key in log message field that holds tracing id value.
const LogField = "traceid"

// Tracer handles tracing spans and contexts by using the opentracing Tracer of
// the configured driver.
type Tracer struct {
	tracer  opentracing.Tracer
	flusher Flusher
	flushes singleflight.Group
	logger  logging.Logger
	metrics metrics
}

// Flusher is implemented by backends able to drain buffered spans on demand.
// The jaeger and zipkin drivers do not implement it, their reporters drain on
// their own flush interval and when the Tracer closer is closed.
type Flusher interface {
	Flush() error
}

// NewTracerFromOpentracing returns a Tracer that delegates to the provided
// opentracing Tracer. If t implements Flusher, Flush calls are forwarded to it.
func NewTracerFromOpentracing(t opentracing.Tracer, logger logging.Logger) *Tracer {
	f, _ := t.(Flusher)
	return &Tracer{
		tracer:  t,
		flusher: f,
		logger:  logger,
		metrics: newMetrics(),
	}
}

// Opentracing returns the underlying opentracing Tracer.
func (t *Tracer) Opentracing() opentracing.Tracer {
	if t == nil {
		t = noopTracer
	}
	return t.tracer
}

// Flush asks the backend to send buffered spans. It is best effort, failures
// are counted and logged, never returned. Concurrent calls share a single
// backend flush.
func (t *Tracer) Flush() {
	if t == nil || t.flusher == nil {
		return
	}
	_, _, err := t.flushes.Do(context.Background(), "flush", func(context.Context) (interface{}, error) {
		return nil, t.flusher.Flush()
	})
	if err != nil {
		t.metrics.FlushFailedCount.Inc()
		if t.logger != nil {
			t.logger.Debugf("tracing: flush: %v", err)
		}
	}
}

// StartSpanFromContext starts a new tracing span that is either a root one or a
// child of existing one from the provided Context. If logger is provided, a new
// log Entry will be returned with "traceid" log field.
func (t *Tracer) StartSpanFromContext(ctx context.Context, operationName string, l logging.Logger, opts ...opentracing.StartSpanOption) (opentracing.Span, *logrus.Entry, context.Context) {
	if t == nil {
		t = noopTracer
	}

	if parentContext := FromContext(ctx); parentContext != nil {
		opts = append(opts, opentracing.ChildOf(parentContext))
	}
	span := t.tracer.StartSpan(operationName, opts...)
	sc := span.Context()
	return span, loggerWithTraceID(sc, l), WithContext(ctx, sc)
}

// AddContextHTTPHeader adds a tracing span context to provided HTTP headers
// from the go context. If the tracing span context is not present in
// go context, ErrContextNotFound is returned.
func (t *Tracer) AddContextHTTPHeader(ctx context.Context, headers http.Header) error {
	if t == nil {
		t = noopTracer
	}

	c := FromContext(ctx)
	if c == nil {
		return ErrContextNotFound
	}

	carrier := opentracing.HTTPHeadersCarrier(headers)
	if err := t.tracer.Inject(c, opentracing.HTTPHeaders, carrier); err != nil {
		t.metrics.InjectFailedCount.Inc()
		return err
	}
	t.metrics.InjectCount.Inc()

	return nil
}

// FromHTTPHeaders returns tracing span context from HTTP headers. If the tracing
// span context is not present in go context, ErrContextNotFound is returned.
func (t *Tracer) FromHTTPHeaders(headers http.Header) (opentracing.SpanContext, error) {
	if t == nil {
		t = noopTracer
	}

	carrier := opentracing.HTTPHeadersCarrier(headers)
	c, err := t.tracer.Extract(opentracing.HTTPHeaders, carrier)
	if err != nil {
		if errors.Is(err, opentracing.ErrSpanContextNotFound) {
			return nil, ErrContextNotFound
		}
		return nil, err
	}

	return c, nil
}

// WithContextFromHTTPHeaders returns a new context with injected tracing span
// context if they are found in HTTP headers. If the tracing span context is not
// present in go context, ErrContextNotFound is returned.
func (t *Tracer) WithContextFromHTTPHeaders(ctx context.Context, headers http.Header) (context.Context, error) {
	if t == nil {
		t = noopTracer
	}

	c, err := t.FromHTTPHeaders(headers)
	if err != nil {
		return ctx, err
	}

	return WithContext(ctx, c), nil
}

// WithContext adds tracing span context to go context.
func WithContext(ctx context.Context, c opentracing.SpanContext) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext return tracing span context from go context. If the tracing span
// context is not present in go context, nil is returned.
func FromContext(ctx context.Context) opentracing.SpanContext {
	c, ok := ctx.Value(contextKey{}).(opentracing.SpanContext)
	if !ok {
		return nil
	}
	return c
}

// NewLoggerWithTraceID creates a new log Entry with "traceid" field added if it
// exists in tracing span context stored from go context.
func NewLoggerWithTraceID(ctx context.Context, l logging.Logger) *logrus.Entry {
	return loggerWithTraceID(FromContext(ctx), l)
}

func loggerWithTraceID(sc opentracing.SpanContext, l logging.Logger) *logrus.Entry {
	if l == nil {
		return nil
	}
	traceID, ok := TraceID(sc)
	if !ok {
		return l.NewEntry()
	}
	return l.WithField(LogField, traceID)
}

// TraceID returns the string form of the trace id of span contexts created by
// the jaeger or zipkin drivers.
func TraceID(sc opentracing.SpanContext) (string, bool) {
	switch c := sc.(type) {
	case jaeger.SpanContext:
		if !c.TraceID().IsValid() {
			return "", false
		}
		return c.TraceID().String(), true
	case zipkinot.SpanContext:
		if c.TraceID.Empty() {
			return "", false
		}
		return c.TraceID.String(), true
	}
	return "", false
}
