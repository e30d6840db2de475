// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package httpclient traces outgoing HTTP requests and propagates the trace
// identity to the called service.
package httpclient

import (
	"net/http"

	"github.com/opentracing/opentracing-go/ext"
	"github.com/sett/tracer/pkg/spantag"
	"github.com/sett/tracer/pkg/switches"
	"github.com/sett/tracer/pkg/tracing"
)

// Transport is an http.RoundTripper that starts a client span for every
// request sent in a traced logical unit of work when http client tracing is
// switched on.
type Transport struct {
	base    http.RoundTripper
	starter *tracing.SpanStarter
}

// NewTransport wraps base. If base is nil, http.DefaultTransport is used.
func NewTransport(base http.RoundTripper, starter *tracing.SpanStarter) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:    base,
		starter: starter,
	}
}

// NewClient returns an http.Client with a tracing Transport.
func NewClient(starter *tracing.SpanStarter) *http.Client {
	return &http.Client{
		Transport: NewTransport(nil, starter),
	}
}

func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	if !t.starter.IsEnabled(ctx, switches.Guzzle) {
		return t.base.RoundTrip(r)
	}

	uri := r.URL.String()
	span, ctx := t.starter.StartSpan(ctx, r.Method+" "+uri, tracing.KindClient)
	t.starter.Record(ctx, spantag.HTTPClient, spantag.Data{
		Keys: map[string]string{
			"method": r.Method,
			"uri":    uri,
		},
	}, span)
	defer t.starter.FinishOnPanic(ctx, span)

	// RoundTrippers must not modify the original request
	r = r.Clone(ctx)
	for k, v := range t.starter.Inject(span, nil) {
		r.Header.Set(k, v)
	}

	resp, err := t.base.RoundTrip(r)
	if err != nil {
		t.starter.Finish(ctx, span, err)
		return nil, err
	}

	ext.HTTPStatusCode.Set(span, uint16(resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		ext.Error.Set(span, true)
	}
	t.starter.Finish(ctx, span, nil)
	return resp, nil
}
