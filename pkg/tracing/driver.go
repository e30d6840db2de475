// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracing

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/opentracing/opentracing-go"
	"github.com/sett/tracer/pkg/logging"
)

// Supported tracer drivers.
const (
	DriverZipkin = "zipkin"
	DriverJaeger = "jaeger"
	DriverNoop   = "noop"
)

var (
	// ErrUnknownDriver is returned when the configured driver is not supported.
	ErrUnknownDriver = errors.New("unknown tracer driver")
	// ErrInvalidDriverOptions is returned when the driver parameters are not
	// valid.
	ErrInvalidDriverOptions = errors.New("invalid tracer driver options")
)

// Options are parameters for the Tracer constructor.
type Options struct {
	// Driver selects the tracing backend. An empty value selects zipkin.
	Driver      string
	ServiceName string
	Logger      logging.Logger
	Zipkin      ZipkinOptions
	Jaeger      JaegerOptions
}

// ZipkinOptions configure the zipkin driver.
type ZipkinOptions struct {
	EndpointURL   string
	LocalAddress  string
	Timeout       time.Duration
	BatchSize     int
	BatchInterval time.Duration
	MaxBacklog    int
	SharedSpans   bool
}

// JaegerOptions configure the jaeger driver.
type JaegerOptions struct {
	ReportingHost       string
	ReportingPort       int
	MaxBufferLength     int
	SamplerType         string
	SamplerParam        float64
	BufferFlushInterval time.Duration
}

// NewTracer creates a new Tracer for the configured driver and returns a
// closer which needs to be closed when the Tracer is no longer used to flush
// remaining traces. Invalid configuration is reported as an error and is
// expected to abort the process start.
func NewTracer(o *Options) (*Tracer, io.Closer, error) {
	if o == nil {
		o = new(Options)
	}

	var (
		t      opentracing.Tracer
		closer io.Closer
		err    error
	)
	switch o.Driver {
	case DriverZipkin, "":
		t, closer, err = newZipkinTracer(o)
	case DriverJaeger:
		t, closer, err = newJaegerTracer(o)
	case DriverNoop:
		t, closer = new(opentracing.NoopTracer), multiCloser(nil)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDriver, o.Driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s tracer: %w", driverName(o.Driver), err)
	}

	return NewTracerFromOpentracing(t, o.Logger), closer, nil
}

func driverName(d string) string {
	if d == "" {
		return DriverZipkin
	}
	return d
}

// multiCloser closes all of its closers and reports every failure.
type multiCloser []io.Closer

func (mc multiCloser) Close() (err error) {
	for _, c := range mc {
		if e := c.Close(); e != nil {
			err = multierror.Append(err, e)
		}
	}
	return err
}
