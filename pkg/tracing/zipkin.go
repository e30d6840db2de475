// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracing

import (
	"fmt"
	"io"
	stdlog "log"
	"net/url"

	"github.com/opentracing/opentracing-go"
	zipkinot "github.com/openzipkin-contrib/zipkin-go-opentracing"
	"github.com/openzipkin/zipkin-go"
	zipkinhttp "github.com/openzipkin/zipkin-go/reporter/http"
	"github.com/sett/tracer/pkg/logging"
)

func newZipkinTracer(o *Options) (opentracing.Tracer, io.Closer, error) {
	zo := o.Zipkin
	if zo.EndpointURL == "" {
		return nil, nil, fmt.Errorf("%w: empty endpoint url", ErrInvalidDriverOptions)
	}
	if u, err := url.Parse(zo.EndpointURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, nil, fmt.Errorf("%w: endpoint url %q", ErrInvalidDriverOptions, zo.EndpointURL)
	}

	endpoint, err := zipkin.NewEndpoint(o.ServiceName, zo.LocalAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: local endpoint: %v", ErrInvalidDriverOptions, err)
	}

	var opts []zipkinhttp.ReporterOption
	if o.Logger != nil {
		opts = append(opts, zipkinhttp.Logger(stdlog.New(&zipkinLogger{logger: o.Logger}, "", 0)))
	}
	if zo.Timeout != 0 {
		opts = append(opts, zipkinhttp.Timeout(zo.Timeout))
	}
	if zo.MaxBacklog != 0 {
		opts = append(opts, zipkinhttp.MaxBacklog(zo.MaxBacklog))
	}
	if zo.BatchSize != 0 {
		opts = append(opts, zipkinhttp.BatchSize(zo.BatchSize))
	}
	if zo.BatchInterval != 0 {
		opts = append(opts, zipkinhttp.BatchInterval(zo.BatchInterval))
	}
	reporter := zipkinhttp.NewReporter(zo.EndpointURL, opts...)

	tracer, err := zipkin.NewTracer(
		reporter,
		zipkin.WithLocalEndpoint(endpoint),
		zipkin.WithSharedSpans(zo.SharedSpans),
	)
	if err != nil {
		_ = reporter.Close()
		return nil, nil, err
	}

	return zipkinot.Wrap(tracer), multiCloser{reporter}, nil
}

// zipkinLogger adapts the logger to the writer of the zipkin reporter logger
// so that reporter errors are logged as warnings.
type zipkinLogger struct {
	logger logging.Logger
}

func (l *zipkinLogger) Write(p []byte) (n int, err error) {
	l.logger.Warningf("zipkin: %s", p)
	return len(p), nil
}
