// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracing

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"
	"github.com/sett/tracer/pkg/logging"
	"github.com/sett/tracer/pkg/spantag"
	"github.com/sett/tracer/pkg/switches"
	"github.com/sett/tracer/pkg/tracectx"
)

// Span kinds set as the span.kind tag.
var (
	KindServer = string(ext.SpanKindRPCServerEnum)
	KindClient = string(ext.SpanKindRPCClientEnum)
)

// SpanStarter decides for every call site whether a started span is the root
// of its logical unit of work or a child of that root, and who the parent of
// a root is.
type SpanStarter struct {
	tracer   *Tracer
	switches *switches.Registry
	tags     *spantag.Registry
	logger   logging.Logger
}

// NewSpanStarter returns a SpanStarter using the provided tracer and
// registries. Nil registries disable gated instrumentation and tagging.
func NewSpanStarter(tracer *Tracer, sw *switches.Registry, tags *spantag.Registry, logger logging.Logger) *SpanStarter {
	if tracer == nil {
		tracer = noopTracer
	}
	return &SpanStarter{
		tracer:   tracer,
		switches: sw,
		tags:     tags,
		logger:   logger,
	}
}

// Tracer returns the backend Tracer.
func (s *SpanStarter) Tracer() *Tracer {
	return s.tracer
}

// StartSpan starts a span for the logical unit of work in ctx, creating the
// unit if there is none. The first span of a unit becomes its root. It is
// parented to the span context extracted from the inbound carrier, if any.
// Every later span is a child of the root. The returned context carries the
// logical unit and the context of the returned span.
func (s *SpanStarter) StartSpan(ctx context.Context, name, kind string, opts ...opentracing.StartSpanOption) (opentracing.Span, context.Context) {
	if kind == "" {
		kind = KindServer
	}
	ctx, unit := tracectx.Ensure(ctx)
	opts = append(opts, opentracing.Tag{Key: string(ext.SpanKind), Value: kind})

	if root, ok := unit.RootSpan(); ok {
		span := s.tracer.tracer.StartSpan(name, append(opts, opentracing.ChildOf(root.Context()))...)
		s.tracer.metrics.ChildSpanCount.Inc()
		return span, WithContext(ctx, span.Context())
	}

	if carrier, ok := inboundCarrier(unit); ok {
		if parent, ok := s.tracer.Extract(carrier); ok {
			opts = append(opts, opentracing.ChildOf(parent))
		}
	}

	span := s.tracer.tracer.StartSpan(name, opts...)
	if unit.SetRootSpan(span) {
		s.tracer.metrics.RootSpanCount.Inc()
	} else {
		// another span won the root slot in the meantime
		s.tracer.metrics.ChildSpanCount.Inc()
	}
	return span, WithContext(ctx, span.Context())
}

// inboundCarrier returns the carrier to extract the parent from. A non-empty
// side channel carrier replaces the transport headers entirely. No carrier is
// returned for units without an inbound request or side channel.
func inboundCarrier(unit *tracectx.Context) (Carrier, bool) {
	if c := unit.Carrier(); len(c) > 0 {
		return Carrier(c), true
	}
	if r, ok := unit.Request(); ok {
		return CarrierFromHTTPHeaders(r.Header), true
	}
	return nil, false
}

// IsEnabled reports whether the instrumentation category is switched on and
// the logical unit in ctx has a root span.
func (s *SpanStarter) IsEnabled(ctx context.Context, category string) bool {
	return s.switches.IsEnabled(ctx, category)
}

// Record applies the tag recipe registered for the category to the span. A
// panicking recipe is recovered and logged, tagging never breaks the traced
// operation.
func (s *SpanStarter) Record(ctx context.Context, category string, data spantag.Data, span opentracing.Span) {
	if span == nil || s.tags == nil {
		return
	}
	if data.Context == nil {
		data.Context = ctx
	}
	defer func() {
		if r := recover(); r != nil {
			s.tracer.metrics.TagPanicCount.Inc()
			if s.logger != nil {
				s.logger.Errorf("tracing: %s tag recipe: %v", category, r)
			}
		}
	}()
	s.tags.Record(category, data, span)
}

// InjectCurrent serializes the identity of the root span of the logical unit
// in ctx into the carrier. The carrier is returned unchanged when there is no
// root.
func (s *SpanStarter) InjectCurrent(ctx context.Context, c Carrier) Carrier {
	if c == nil {
		c = make(Carrier)
	}
	root, ok := tracectx.RootSpan(ctx)
	if !ok {
		return c
	}
	return s.tracer.Inject(root.Context(), c)
}

// Inject serializes the identity of the span into the carrier.
func (s *SpanStarter) Inject(span opentracing.Span, c Carrier) Carrier {
	if span == nil {
		if c == nil {
			c = make(Carrier)
		}
		return c
	}
	return s.tracer.Inject(span.Context(), c)
}

// Finish marks the span as failed if err is not nil, records the exception
// tags when exception tracing is switched on and finishes the span. The error
// is not consumed, callers return it as usual.
func (s *SpanStarter) Finish(ctx context.Context, span opentracing.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		ext.Error.Set(span, true)
		span.LogFields(
			log.String("event", "error"),
			log.String("message", err.Error()),
			log.String("stack", fmt.Sprintf("%+v", err)),
		)
		if s.IsEnabled(ctx, switches.Exception) {
			s.Record(ctx, spantag.Exception, spantag.Data{Err: err}, span)
		}
	}
	span.Finish()
}

// FinishOnPanic finishes the span as failed when the calling goroutine is
// panicking and panics again with the same value. It has to be deferred
// directly, right after the span is started.
func (s *SpanStarter) FinishOnPanic(ctx context.Context, span opentracing.Span) {
	if p := recover(); p != nil {
		s.Finish(ctx, span, fmt.Errorf("panic: %v", p))
		panic(p)
	}
}

// Flush asks the backend to send buffered spans, failures are swallowed.
func (s *SpanStarter) Flush() {
	s.tracer.Flush()
}
