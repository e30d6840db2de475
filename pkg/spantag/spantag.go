// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package spantag holds named recipes that decorate spans with domain tags.
package spantag

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/atomic"
)

// Categories with a default recipe.
const (
	Request    = "request"
	Response   = "response"
	DB         = "db"
	Redis      = "redis"
	HTTPClient = "http_client"
	Exception  = "exception"
	Coroutine  = "coroutine"
	RPC        = "rpc"
)

// Data is the contextual data handed to a recipe.
type Data struct {
	// Context of the logical unit of work the span belongs to.
	Context context.Context
	// Keys holds string attributes of the traced operation,
	// for example "method" and "uri" of an outgoing request.
	Keys map[string]string
	// Arguments of the traced operation, for example cache command arguments.
	Arguments []interface{}
	// Err is the error of the traced operation.
	Err error
	// Value is any additional value provided by the call site.
	Value interface{}
}

// Callback decorates the span with tags derived from data.
type Callback func(span opentracing.Span, data Data)

// Registry is a read-mostly set of recipes keyed by category.
type Registry struct {
	tags atomic.Value // map[string]Callback
}

// New returns a Registry holding the default recipes merged with overrides.
func New(overrides map[string]Callback) *Registry {
	r := new(Registry)
	r.Apply(overrides)
	return r
}

// Apply merges overrides over the default recipes key by key and replaces
// the effective mapping. A nil override removes the category.
func (r *Registry) Apply(overrides map[string]Callback) {
	tags := Defaults()
	for k, v := range overrides {
		if v == nil {
			delete(tags, k)
			continue
		}
		tags[k] = v
	}
	r.tags.Store(tags)
}

func (r *Registry) load() map[string]Callback {
	if r == nil {
		return nil
	}
	m, _ := r.tags.Load().(map[string]Callback)
	return m
}

// Exists reports whether a recipe is registered under name.
func (r *Registry) Exists(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Get returns the recipe registered under name.
func (r *Registry) Get(name string) (Callback, bool) {
	if r == nil {
		return nil, false
	}
	c, ok := r.load()[name]
	return c, ok
}

// Record invokes the recipe registered under name with the span and data.
// Nothing happens if no recipe is registered. Panics of the recipe are not
// recovered here.
func (r *Registry) Record(name string, data Data, span opentracing.Span) {
	c, ok := r.Get(name)
	if !ok {
		return
	}
	c(span, data)
}
