// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package grpctrace propagates the trace identity through gRPC metadata.
package grpctrace

import (
	"context"

	"github.com/sett/tracer/pkg/spantag"
	"github.com/sett/tracer/pkg/tracectx"
	"github.com/sett/tracer/pkg/tracing"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// TagCode is the span tag holding the gRPC status code name of a call.
const TagCode = "rpc.grpc.status_code"

// UnaryClientInterceptor starts a client span for every unary call and sends
// its identity in the outgoing metadata.
func UnaryClientInterceptor(starter *tracing.SpanStarter) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		span, ctx := starter.StartSpan(ctx, "rpc:"+method, tracing.KindClient)
		starter.Record(ctx, spantag.RPC, spantag.Data{Keys: map[string]string{"path": method}}, span)
		defer starter.FinishOnPanic(ctx, span)

		md, ok := metadata.FromOutgoingContext(ctx)
		if ok {
			md = md.Copy()
		} else {
			md = metadata.MD{}
		}
		for k, v := range starter.Inject(span, nil) {
			md.Set(k, v)
		}

		err := invoker(metadata.NewOutgoingContext(ctx, md), method, req, reply, cc, opts...)
		span.SetTag(TagCode, status.Code(err).String())
		starter.Finish(ctx, span, err)
		return err
	}
}

// UnaryServerInterceptor stages the trace identity from the incoming metadata
// as the propagation carrier of the logical unit and starts the server span
// of the call.
func UnaryServerInterceptor(starter *tracing.SpanStarter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx, unit := tracectx.Ensure(ctx)
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if c := carrierFromMetadata(md); len(c) > 0 {
				unit.SetCarrier(c)
			}
		}
		defer starter.Flush()

		span, ctx := starter.StartSpan(ctx, "rpc:"+info.FullMethod, tracing.KindServer)
		starter.Record(ctx, spantag.RPC, spantag.Data{Keys: map[string]string{"path": info.FullMethod}}, span)
		starter.Record(ctx, spantag.Coroutine, spantag.Data{}, span)
		defer starter.FinishOnPanic(ctx, span)

		resp, err := handler(ctx, req)
		span.SetTag(TagCode, status.Code(err).String())
		starter.Finish(ctx, span, err)
		return resp, err
	}
}

func carrierFromMetadata(md metadata.MD) map[string]string {
	c := make(map[string]string, len(md))
	for k, v := range md {
		if len(v) == 0 {
			continue
		}
		c[k] = v[0]
	}
	return c
}
