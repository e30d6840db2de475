// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/sett/tracer/pkg/jsonhttp"
	"github.com/sett/tracer/pkg/logging"
	"github.com/sett/tracer/pkg/spantag"
	"github.com/sett/tracer/pkg/tracectx"
	"github.com/sett/tracer/pkg/tracing"
)

// Handler serves a single RPC method.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Server dispatches JSON-RPC requests received over HTTP to registered
// handlers. The request context member is staged as the propagation carrier
// of the logical unit before the server span is started, so it takes
// precedence over the trace identity in HTTP headers.
type Server struct {
	starter *tracing.SpanStarter
	logger  logging.Logger
	status  StatusPolicy

	mu      sync.RWMutex
	methods map[string]Handler
}

// NewServer returns a Server without registered methods.
func NewServer(starter *tracing.SpanStarter, logger logging.Logger) *Server {
	return &Server{
		starter: starter,
		logger:  logger,
		status:  DefaultStatusPolicy,
		methods: make(map[string]Handler),
	}
}

// Register adds the handler for the RPC path.
func (s *Server) Register(path string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[path] = h
}

func (s *Server) handler(path string) (Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.methods[path]
	return h, ok
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if jsonhttp.HandleBodyReadError(err, w) {
			return
		}
		s.logger.Debugf("jsonrpc: decode request: %v", err)
		jsonhttp.OK(w, Response{
			JSONRPC: Version,
			Error:   &Error{Code: CodeParseError, Message: "parse error"},
		})
		return
	}

	ctx, unit := tracectx.Ensure(r.Context())
	unit.SetRequest(r)
	if len(req.Context) > 0 {
		unit.SetCarrier(req.Context)
	}
	defer s.starter.Flush()

	span, ctx := s.starter.StartSpan(ctx, "rpc:"+req.Method, tracing.KindServer)
	s.starter.Record(ctx, spantag.RPC, spantag.Data{Keys: map[string]string{"path": req.Method}}, span)
	s.starter.Record(ctx, spantag.Coroutine, spantag.Data{}, span)
	defer func() {
		if p := recover(); p != nil {
			span.SetTag(TagStatus, StatusFail)
			s.starter.Finish(ctx, span, fmt.Errorf("panic: %v", p))
			panic(p)
		}
	}()

	resp, err := s.dispatch(ctx, req)
	span.SetTag(TagStatus, s.status(&resp, err))
	s.starter.Finish(ctx, span, err)

	jsonhttp.OK(w, resp)
}

func (s *Server) dispatch(ctx context.Context, req Request) (resp Response, err error) {
	resp = Response{
		JSONRPC: Version,
		ID:      req.ID,
	}
	if req.JSONRPC != Version || req.Method == "" {
		resp.Error = &Error{Code: CodeInvalidRequest, Message: "invalid request"}
		return resp, resp.Error
	}
	h, ok := s.handler(req.Method)
	if !ok {
		resp.Error = &Error{Code: CodeMethodNotFound, Message: "method not found"}
		return resp, resp.Error
	}

	result, err := h(ctx, req.Params)
	if err != nil {
		var rpcErr *Error
		if !errors.As(err, &rpcErr) {
			rpcErr = &Error{Code: CodeInternalError, Message: err.Error()}
		}
		resp.Error = rpcErr
		return resp, err
	}

	b, err := json.Marshal(result)
	if err != nil {
		resp.Error = &Error{Code: CodeInternalError, Message: "encode result"}
		return resp, err
	}
	resp.Result = b
	return resp, nil
}
