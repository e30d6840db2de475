// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package api

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"resenje.org/web"

	"github.com/sett/tracer/pkg/instrument/httpserver"
	"github.com/sett/tracer/pkg/jsonhttp"
	"github.com/sett/tracer/pkg/logging"
	"github.com/sett/tracer/pkg/logging/httpaccess"
)

const maxBodyBytes = 1 << 20

func (s *Service) setupRouting() {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(jsonhttp.NotFoundHandler)

	router.Handle("/health", web.ChainHandlers(
		httpaccess.SetAccessLogLevelHandler(0), // suppress access log messages
		web.FinalHandlerFunc(s.healthHandler),
	))
	router.Handle("/readiness", web.ChainHandlers(
		httpaccess.SetAccessLogLevelHandler(0), // suppress access log messages
		web.FinalHandlerFunc(s.readinessHandler),
	))
	router.Path("/metrics").Handler(web.ChainHandlers(
		httpaccess.SetAccessLogLevelHandler(0), // suppress access log messages
		web.FinalHandler(promhttp.InstrumentMetricHandler(
			s.metricsRegistry,
			promhttp.HandlerFor(s.metricsRegistry, promhttp.HandlerOpts{}),
		)),
	))

	traced := httpserver.NewMiddleware(s.starter)

	router.Handle(rootPath+"/echo", jsonhttp.MethodHandler{
		"POST": web.ChainHandlers(
			traced,
			jsonhttp.NewMaxBodyBytesHandler(maxBodyBytes),
			web.FinalHandlerFunc(s.echoHandler),
		),
	})
	router.Handle(rootPath+"/switches", jsonhttp.MethodHandler{
		"GET": web.ChainHandlers(
			traced,
			web.FinalHandlerFunc(s.switchesHandler),
		),
	})

	// The RPC server starts its own root span, parented to the context
	// carried in the request body.
	router.Handle(rootPath+"/rpc", jsonhttp.MethodHandler{
		"POST": web.ChainHandlers(
			jsonhttp.NewMaxBodyBytesHandler(maxBodyBytes),
			web.FinalHandler(s.rpc),
		),
	})

	s.Handler = web.ChainHandlers(
		s.pageviewMetricsHandler,
		s.responseCodeMetricsHandler,
		httpaccess.NewHTTPAccessLogHandler(s.logger, logrus.InfoLevel, s.tracer, "api access"),
		handlers.RecoveryHandler(
			handlers.RecoveryLogger(recoveryLogger{logger: s.logger}),
			handlers.PrintRecoveryStack(false),
		),
		web.FinalHandler(router),
	)
}

type recoveryLogger struct {
	logger logging.Logger
}

func (l recoveryLogger) Println(args ...interface{}) {
	l.logger.Error(args...)
}
