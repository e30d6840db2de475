// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package node wires the tracing engine components into a running process
// with an HTTP API.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/sett/tracer/pkg/api"
	"github.com/sett/tracer/pkg/logging"
	"github.com/sett/tracer/pkg/spantag"
	"github.com/sett/tracer/pkg/switches"
	"github.com/sett/tracer/pkg/tracing"
)

// ErrShutdownInProgress is returned by Shutdown when it is called more than
// once.
var ErrShutdownInProgress = errors.New("shutdown in progress")

// Options holds the configuration of a Node.
type Options struct {
	APIAddr  string
	Tracing  tracing.Options
	Switches map[string]bool
	Tags     map[string]spantag.Callback
	Logger   logging.Logger
}

// Node is a running tracing engine process.
type Node struct {
	starter        *tracing.SpanStarter
	switches       *switches.Registry
	tags           *spantag.Registry
	probe          *api.Probe
	apiService     *api.Service
	apiServer      *http.Server
	apiListener    net.Listener
	tracerCloser   io.Closer
	errorLogWriter io.Closer
	logger         logging.Logger

	shutdownInProgress bool
	shutdownMutex      sync.Mutex
}

// New constructs the tracer, the registries and the API and starts serving
// the API on o.APIAddr.
func New(o *Options) (n *Node, err error) {
	logger := o.Logger
	if logger == nil {
		logger = logging.New(io.Discard, 0)
	}

	tracingOptions := o.Tracing
	if tracingOptions.Logger == nil {
		tracingOptions.Logger = logger
	}
	tracer, tracerCloser, err := tracing.NewTracer(&tracingOptions)
	if err != nil {
		return nil, fmt.Errorf("tracer: %w", err)
	}
	defer func() {
		if err != nil {
			if cerr := tracerCloser.Close(); cerr != nil {
				err = multierror.Append(err, fmt.Errorf("tracer: %w", cerr))
			}
		}
	}()

	sw := switches.New(o.Switches)
	tags := spantag.New(o.Tags)
	starter := tracing.NewSpanStarter(tracer, sw, tags, logger)

	probe := api.NewProbe()
	probe.SetHealthy(api.ProbeStatusOK)

	apiService := api.New(api.Options{
		Tracer:   tracer,
		Starter:  starter,
		Switches: sw,
		Probe:    probe,
		Logger:   logger,
	})
	apiService.MustRegisterMetrics(logger.Metrics()...)
	apiService.MustRegisterMetrics(tracer.Metrics()...)
	apiService.MustRegisterMetrics(apiService.Metrics()...)

	apiListener, err := net.Listen("tcp", o.APIAddr)
	if err != nil {
		return nil, fmt.Errorf("api listener: %w", err)
	}

	errorLogWriter := logger.WriterLevel(logrus.ErrorLevel)
	apiServer := &http.Server{
		IdleTimeout:       30 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		Handler:           apiService,
		ErrorLog:          stdlog.New(errorLogWriter, "", 0),
	}

	go func() {
		logger.Infof("api address: %s", apiListener.Addr())

		if err := apiServer.Serve(apiListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Debugf("api server: %v", err)
			logger.Error("unable to serve api")
		}
	}()

	probe.SetReady(api.ProbeStatusOK)

	return &Node{
		starter:        starter,
		switches:       sw,
		tags:           tags,
		probe:          probe,
		apiService:     apiService,
		apiServer:      apiServer,
		apiListener:    apiListener,
		tracerCloser:   tracerCloser,
		errorLogWriter: errorLogWriter,
		logger:         logger,
	}, nil
}

// APIAddr returns the address the API is served on.
func (n *Node) APIAddr() net.Addr {
	return n.apiListener.Addr()
}

// Starter returns the span starter shared by all call sites of the node.
func (n *Node) Starter() *tracing.SpanStarter {
	return n.starter
}

// Switches returns the feature switch registry of the node.
func (n *Node) Switches() *switches.Registry {
	return n.switches
}

// Tags returns the tag enrichment registry of the node.
func (n *Node) Tags() *spantag.Registry {
	return n.tags
}

// Shutdown stops the API server and flushes and closes the tracer. Errors of
// all components are reported together.
func (n *Node) Shutdown(ctx context.Context) error {
	var mErr error

	n.shutdownMutex.Lock()
	if n.shutdownInProgress {
		n.shutdownMutex.Unlock()
		return ErrShutdownInProgress
	}
	n.shutdownInProgress = true
	n.shutdownMutex.Unlock()

	// stop accepting traffic before the server goes away
	n.probe.SetReady(api.ProbeStatusNOK)

	tryClose := func(c io.Closer, errMsg string) {
		if c == nil {
			return
		}
		if err := c.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("%s: %w", errMsg, err))
		}
	}

	if err := n.apiServer.Shutdown(ctx); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("api server: %w", err))
	}

	n.starter.Flush()
	tryClose(n.tracerCloser, "tracer")
	tryClose(n.errorLogWriter, "error log writer")

	return mErr
}
