// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package method traces explicitly marked function calls.
package method

import (
	"context"
	"fmt"

	"github.com/sett/tracer/pkg/switches"
	"github.com/sett/tracer/pkg/tracing"
)

// DefaultTag is the tag holding the traced source when Trace.Tag is empty.
const DefaultTag = "source"

// Trace names the span of an explicitly traced call and the tag that holds
// the call source.
type Trace struct {
	Name string
	Tag  string
}

// Tracer wraps function calls in spans.
type Tracer struct {
	starter *tracing.SpanStarter
}

// New returns a Tracer starting spans with starter.
func New(starter *tracing.SpanStarter) *Tracer {
	return &Tracer{starter: starter}
}

// Do calls fn in a span named name when method tracing is switched on and
// the logical unit of work in ctx is traced. The error of fn is returned
// unchanged.
func (t *Tracer) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if !t.starter.IsEnabled(ctx, switches.Method) {
		return fn(ctx)
	}

	span, ctx := t.starter.StartSpan(ctx, name, "")
	defer t.starter.FinishOnPanic(ctx, span)

	err := fn(ctx)
	t.starter.Finish(ctx, span, err)
	return err
}

// Annotated always calls fn in a span. The span is named by tr.Name, or by
// source if the name is empty, and source is set as the tr.Tag tag.
func (t *Tracer) Annotated(ctx context.Context, tr Trace, source string, fn func(ctx context.Context) error) error {
	name := tr.Name
	if name == "" {
		name = source
	}
	tag := tr.Tag
	if tag == "" {
		tag = DefaultTag
	}

	span, ctx := t.starter.StartSpan(ctx, name, "")
	span.SetTag(tag, source)
	defer func() {
		if p := recover(); p != nil {
			span.SetTag("exception", true)
			t.starter.Finish(ctx, span, fmt.Errorf("panic: %v", p))
			panic(p)
		}
	}()

	err := fn(ctx)
	if err != nil {
		span.SetTag("exception", true)
	}
	t.starter.Finish(ctx, span, err)
	return err
}
