// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package api exposes the HTTP API of the tracing engine: probes, metrics and
// a pair of traced endpoints that propagate trace context over plain HTTP
// and over JSON-RPC.
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sett/tracer/pkg/instrument/jsonrpc"
	"github.com/sett/tracer/pkg/instrument/method"
	"github.com/sett/tracer/pkg/logging"
	"github.com/sett/tracer/pkg/switches"
	"github.com/sett/tracer/pkg/tracing"
)

// Version is the version of the HTTP API.
const Version = "1.0.0"

const rootPath = "/v1"

// Options holds the dependencies of the API Service.
type Options struct {
	Tracer   *tracing.Tracer
	Starter  *tracing.SpanStarter
	Switches *switches.Registry
	Probe    *Probe
	Logger   logging.Logger
}

// Service implements http.Handler interface to be used in HTTP server.
type Service struct {
	http.Handler

	tracer          *tracing.Tracer
	starter         *tracing.SpanStarter
	switches        *switches.Registry
	method          *method.Tracer
	rpc             *jsonrpc.Server
	probe           *Probe
	logger          logging.Logger
	metrics         metrics
	metricsRegistry *prometheus.Registry
}

// New constructs the API Service with all routes mounted.
func New(o Options) *Service {
	s := &Service{
		tracer:          o.Tracer,
		starter:         o.Starter,
		switches:        o.Switches,
		method:          method.New(o.Starter),
		rpc:             jsonrpc.NewServer(o.Starter, o.Logger),
		probe:           o.Probe,
		logger:          o.Logger,
		metrics:         newMetrics(),
		metricsRegistry: newMetricsRegistry(),
	}
	s.registerRPC()
	s.setupRouting()

	return s
}

// RPC returns the JSON-RPC server mounted under /v1/rpc so that more methods
// can be registered on it.
func (s *Service) RPC() *jsonrpc.Server {
	return s.rpc
}
