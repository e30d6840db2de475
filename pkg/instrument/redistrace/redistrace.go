// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package redistrace traces commands sent to a cache server.
package redistrace

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go/ext"
	"github.com/sett/tracer/pkg/spantag"
	"github.com/sett/tracer/pkg/switches"
	"github.com/sett/tracer/pkg/tracing"
)

// Cmd is a cache command with its arguments.
type Cmd struct {
	Name string
	Args []interface{}
}

// Hook wraps command execution of a cache client.
type Hook struct {
	starter *tracing.SpanStarter
}

// NewHook returns a Hook starting spans with starter.
func NewHook(starter *tracing.SpanStarter) *Hook {
	return &Hook{starter: starter}
}

// Process executes the command with next. When cache tracing is switched on
// and the logical unit of work in ctx is traced, the execution is recorded in
// a span named after the command.
func (h *Hook) Process(ctx context.Context, cmd Cmd, next func(ctx context.Context) error) error {
	if !h.starter.IsEnabled(ctx, switches.Redis) {
		return next(ctx)
	}

	span, ctx := h.starter.StartSpan(ctx, "redis."+strings.ToLower(cmd.Name), tracing.KindClient)
	ext.DBType.Set(span, "redis")
	h.starter.Record(ctx, spantag.Redis, spantag.Data{Arguments: cmd.Args, Value: cmd}, span)
	defer h.starter.FinishOnPanic(ctx, span)

	err := next(ctx)
	h.starter.Finish(ctx, span, err)
	return err
}
