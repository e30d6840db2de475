// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sett/tracer/pkg/instrument/jsonrpc"
	"github.com/sett/tracer/pkg/instrument/method"
	"github.com/sett/tracer/pkg/jsonhttp"
	"github.com/sett/tracer/pkg/tracing"
)

const (
	// RPCEcho is the RPC path of the echo method.
	RPCEcho = "/tracer/echo"
	// RPCSwitches is the RPC path of the method listing feature switches.
	RPCSwitches = "/tracer/switches"
)

var errEmptyMessage = errors.New("empty message")

type echoRequest struct {
	Message string `json:"message"`
}

type echoResponse struct {
	Message string `json:"message"`
	TraceID string `json:"traceId,omitempty"`
}

// echo answers the message together with the trace id of the span it was
// handled in.
func (s *Service) echo(ctx context.Context, source, message string) (resp echoResponse, err error) {
	err = s.method.Annotated(ctx, method.Trace{Name: "echo"}, source, func(ctx context.Context) error {
		return s.method.Do(ctx, "echo.message", func(ctx context.Context) error {
			if message == "" {
				return errEmptyMessage
			}
			resp = echoResponse{Message: message}
			if sc := tracing.FromContext(ctx); sc != nil {
				resp.TraceID, _ = tracing.TraceID(sc)
			}
			tracing.NewLoggerWithTraceID(ctx, s.logger).Debugf("echo: %q", message)
			return nil
		})
	})
	return resp, err
}

func (s *Service) echoHandler(w http.ResponseWriter, r *http.Request) {
	var req echoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if jsonhttp.HandleBodyReadError(err, w) {
			return
		}
		s.logger.Debugf("echo: decode request: %v", err)
		jsonhttp.BadRequest(w, "invalid request body")
		return
	}

	resp, err := s.echo(r.Context(), "api.echoHandler", req.Message)
	if err != nil {
		if errors.Is(err, errEmptyMessage) {
			jsonhttp.BadRequest(w, err.Error())
			return
		}
		s.logger.Errorf("echo: %v", err)
		jsonhttp.InternalServerError(w, nil)
		return
	}
	jsonhttp.OK(w, resp)
}

func (s *Service) switchesHandler(w http.ResponseWriter, _ *http.Request) {
	jsonhttp.OK(w, s.switches.Snapshot())
}

func (s *Service) registerRPC() {
	s.rpc.Register(RPCEcho, func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var req echoRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "invalid params"}
		}
		resp, err := s.echo(ctx, "api.rpcEcho", req.Message)
		if errors.Is(err, errEmptyMessage) {
			return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: err.Error()}
		}
		return resp, err
	})
	s.rpc.Register(RPCSwitches, func(context.Context, json.RawMessage) (interface{}, error) {
		return s.switches.Snapshot(), nil
	})
}
