// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package switches holds per-category instrumentation switches.
//
// A category is enabled for a logical unit of work only when its switch is on
// and the unit already has a root span. Secondary instrumentation, such as
// database or cache spans, therefore never produces orphan spans outside of a
// traced request or task.
package switches

import (
	"context"
	"sort"

	"github.com/sett/tracer/pkg/tracectx"
	"go.uber.org/atomic"
)

// Categories known to the default configuration.
const (
	Guzzle    = "guzzle"
	Redis     = "redis"
	DB        = "db"
	Method    = "method"
	Exception = "exception"
)

// Defaults returns a fresh copy of the default switches.
func Defaults() map[string]bool {
	return map[string]bool{
		Guzzle:    false,
		Redis:     false,
		DB:        false,
		Method:    false,
		Exception: false,
	}
}

// Registry is a read-mostly set of switches. Apply replaces the effective
// mapping atomically, readers always observe a complete mapping.
type Registry struct {
	flags atomic.Value // map[string]bool
}

// New returns a Registry holding the defaults merged with overrides.
func New(overrides map[string]bool) *Registry {
	r := new(Registry)
	r.Apply(overrides)
	return r
}

// Apply merges overrides over the defaults key by key and replaces the
// effective mapping.
func (r *Registry) Apply(overrides map[string]bool) {
	flags := Defaults()
	for k, v := range overrides {
		flags[k] = v
	}
	r.flags.Store(flags)
}

func (r *Registry) load() map[string]bool {
	if r == nil {
		return nil
	}
	m, _ := r.flags.Load().(map[string]bool)
	return m
}

// Flag returns the configured value of the category switch. Unknown
// categories are off.
func (r *Registry) Flag(category string) bool {
	if r == nil {
		return false
	}
	return r.load()[category]
}

// IsEnabled reports whether instrumentation of the category should fire for
// the logical unit of work in ctx.
func (r *Registry) IsEnabled(ctx context.Context, category string) bool {
	if !r.Flag(category) {
		return false
	}
	_, ok := tracectx.RootSpan(ctx)
	return ok
}

// Snapshot returns a copy of the effective switches.
func (r *Registry) Snapshot() map[string]bool {
	m := r.load()
	c := make(map[string]bool, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Categories returns the sorted names of all configured categories.
func (r *Registry) Categories() []string {
	m := r.load()
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
