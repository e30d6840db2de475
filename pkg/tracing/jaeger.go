// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracing

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/sett/tracer/pkg/logging"
	"github.com/uber/jaeger-client-go"
	"github.com/uber/jaeger-client-go/config"
)

const (
	// TraceContextHeaderName is the header name used by the jaeger driver to
	// propagate tracing context.
	TraceContextHeaderName = "uber-trace-id"

	// TraceBaggageHeaderPrefix is the prefix for headers used by the jaeger
	// driver to propagate baggage.
	TraceBaggageHeaderPrefix = "uberctx-"

	defaultJaegerFlushInterval = 1 * time.Second
)

func newJaegerTracer(o *Options) (opentracing.Tracer, io.Closer, error) {
	jo := o.Jaeger
	if o.ServiceName == "" {
		return nil, nil, fmt.Errorf("%w: empty service name", ErrInvalidDriverOptions)
	}
	if jo.ReportingHost == "" {
		return nil, nil, fmt.Errorf("%w: empty reporting host", ErrInvalidDriverOptions)
	}
	if jo.ReportingPort <= 0 || jo.ReportingPort > 65535 {
		return nil, nil, fmt.Errorf("%w: reporting port %d", ErrInvalidDriverOptions, jo.ReportingPort)
	}

	samplerType := jo.SamplerType
	if samplerType == "" {
		samplerType = jaeger.SamplerTypeConst
	}
	switch samplerType {
	case jaeger.SamplerTypeConst, jaeger.SamplerTypeProbabilistic, jaeger.SamplerTypeRateLimiting, jaeger.SamplerTypeRemote:
	default:
		return nil, nil, fmt.Errorf("%w: sampler type %q", ErrInvalidDriverOptions, samplerType)
	}

	flushInterval := jo.BufferFlushInterval
	if flushInterval == 0 {
		flushInterval = defaultJaegerFlushInterval
	}

	cfg := config.Configuration{
		ServiceName: o.ServiceName,
		Sampler: &config.SamplerConfig{
			Type:  samplerType,
			Param: jo.SamplerParam,
		},
		Reporter: &config.ReporterConfig{
			QueueSize:           jo.MaxBufferLength,
			BufferFlushInterval: flushInterval,
			LocalAgentHostPort:  net.JoinHostPort(jo.ReportingHost, strconv.Itoa(jo.ReportingPort)),
		},
		Headers: &jaeger.HeadersConfig{
			TraceContextHeaderName:   TraceContextHeaderName,
			TraceBaggageHeaderPrefix: TraceBaggageHeaderPrefix,
		},
	}

	var opts []config.Option
	if o.Logger != nil {
		opts = append(opts, config.Logger(jaegerLogger{logger: o.Logger}))
	}

	t, closer, err := cfg.NewTracer(opts...)
	if err != nil {
		return nil, nil, err
	}
	return t, closer, nil
}

// jaegerLogger adapts the logger to the jaeger reporter logger.
type jaegerLogger struct {
	logger logging.Logger
}

func (l jaegerLogger) Error(msg string) {
	l.logger.Errorf("jaeger: %s", msg)
}

func (l jaegerLogger) Infof(msg string, args ...interface{}) {
	l.logger.Debugf("jaeger: "+msg, args...)
}

func (l jaegerLogger) Debugf(msg string, args ...interface{}) {
	l.logger.Tracef("jaeger: "+msg, args...)
}
