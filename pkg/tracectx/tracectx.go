// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tracectx holds the trace state of one logical unit of work, an
// inbound request or a background task. The state travels inside a
// context.Context, so two units running on the same goroutine pool never
// observe each other's values.
package tracectx

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
)

// Keys used by the span lifecycle manager.
const (
	KeyRootSpan = "tracer.rootSpan"
	KeyCarrier  = "tracer.carrier"
	KeyRequest  = "tracer.request"
	KeyResponse = "tracer.response"
)

type contextKey struct{}

// Context is the storage of a single logical unit of work.
type Context struct {
	id     string
	mu     sync.RWMutex
	values map[string]interface{}
}

// ResponseInfo describes the outcome of an inbound request.
type ResponseInfo struct {
	StatusCode int
	Size       int
}

func newContext() *Context {
	return &Context{
		id:     uuid.New().String(),
		values: make(map[string]interface{}),
	}
}

// New opens a new logical unit of work and returns the context carrying it.
// Any unit already present in ctx is shadowed.
func New(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, newContext())
}

// FromContext returns the logical unit stored in ctx.
func FromContext(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(contextKey{}).(*Context)
	return c, ok
}

// Ensure returns the logical unit from ctx, creating one when missing.
func Ensure(ctx context.Context) (context.Context, *Context) {
	if c, ok := FromContext(ctx); ok {
		return ctx, c
	}
	c := newContext()
	return context.WithValue(ctx, contextKey{}, c), c
}

// ID returns the unique identifier of the logical unit.
func (c *Context) ID() string {
	return c.id
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Set stores the value under key.
func (c *Context) Set(key string, value interface{}) {
	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
}

// Clear removes all values. It is called when the logical unit ends.
func (c *Context) Clear() {
	c.mu.Lock()
	c.values = make(map[string]interface{})
	c.mu.Unlock()
}

// RootSpan returns the root span of the logical unit.
func (c *Context) RootSpan() (opentracing.Span, bool) {
	v, ok := c.Get(KeyRootSpan)
	if !ok {
		return nil, false
	}
	s, ok := v.(opentracing.Span)
	return s, ok && s != nil
}

// SetRootSpan publishes span as the root of the logical unit. The slot is
// written at most once; false is returned if a root is already present.
func (c *Context) SetRootSpan(span opentracing.Span) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.values[KeyRootSpan].(opentracing.Span); ok && s != nil {
		return false
	}
	c.values[KeyRootSpan] = span
	return true
}

// Carrier returns the propagation carrier staged by an RPC layer.
func (c *Context) Carrier() map[string]string {
	v, ok := c.Get(KeyCarrier)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]string)
	return m
}

// SetCarrier stages a propagation carrier for the logical unit.
func (c *Context) SetCarrier(carrier map[string]string) {
	c.Set(KeyCarrier, carrier)
}

// Request returns the inbound HTTP request of the logical unit.
func (c *Context) Request() (*http.Request, bool) {
	v, ok := c.Get(KeyRequest)
	if !ok {
		return nil, false
	}
	r, ok := v.(*http.Request)
	return r, ok && r != nil
}

// SetRequest records the inbound HTTP request of the logical unit.
func (c *Context) SetRequest(r *http.Request) {
	c.Set(KeyRequest, r)
}

// Response returns the recorded response of the inbound request.
func (c *Context) Response() (ResponseInfo, bool) {
	v, ok := c.Get(KeyResponse)
	if !ok {
		return ResponseInfo{}, false
	}
	r, ok := v.(ResponseInfo)
	return r, ok
}

// SetResponse records the response of the inbound request.
func (c *Context) SetResponse(r ResponseInfo) {
	c.Set(KeyResponse, r)
}

// RootSpan is a shorthand returning the root span of the logical unit in ctx.
func RootSpan(ctx context.Context) (opentracing.Span, bool) {
	c, ok := FromContext(ctx)
	if !ok {
		return nil, false
	}
	return c.RootSpan()
}
