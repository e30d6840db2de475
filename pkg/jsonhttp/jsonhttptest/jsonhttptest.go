// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jsonhttptest provides a request helper for testing traced JSON HTTP
// APIs.
package jsonhttptest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/sett/tracer/pkg/jsonhttp"
)

// Request sends the request with the provided client and validates the
// response against the expectations set by options. Response headers are
// returned for further checks.
func Request(t testing.TB, client *http.Client, method, url string, responseCode int, opts ...Option) http.Header {
	t.Helper()

	o := options{requestHeaders: make(http.Header)}
	for _, opt := range opts {
		if err := opt.apply(&o); err != nil {
			t.Fatal(err)
		}
	}

	ctx := o.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, url, o.requestBody)
	if err != nil {
		t.Fatal(err)
	}
	req.Header = o.requestHeaders

	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != responseCode {
		t.Errorf("got response status %s, want %v %s", resp.Status, responseCode, http.StatusText(responseCode))
	}
	for k, want := range o.expectedHeaders {
		if got := resp.Header.Get(k); got != want {
			t.Errorf("got response header %s %q, want %q", k, got, want)
		}
	}

	switch {
	case o.expectedResponse != nil:
		got := readBody(t, resp.Body)
		if !bytes.Equal(got, o.expectedResponse) {
			t.Errorf("got response %s, want %s", got, o.expectedResponse)
		}
	case o.expectedJSONResponse != nil:
		if v := resp.Header.Get("Content-Type"); v != jsonhttp.DefaultContentTypeHeader {
			t.Errorf("got content type %q, want %q", v, jsonhttp.DefaultContentTypeHeader)
		}
		got := bytes.TrimSpace(readBody(t, resp.Body))
		want, err := json.Marshal(o.expectedJSONResponse)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("got json response %s, want %s", got, want)
		}
	case o.unmarshalResponse != nil:
		if err := json.NewDecoder(resp.Body).Decode(o.unmarshalResponse); err != nil {
			t.Fatal(err)
		}
	case o.noResponseBody:
		if got := readBody(t, resp.Body); len(got) > 0 {
			t.Errorf("got response body %s, want none", got)
		}
	}
	return resp.Header
}

func readBody(t testing.TB, r io.Reader) []byte {
	t.Helper()

	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// WithContext sets the context of the request.
func WithContext(ctx context.Context) Option {
	return optionFunc(func(o *options) error {
		o.ctx = ctx
		return nil
	})
}

func WithRequestBody(body io.Reader) Option {
	return optionFunc(func(o *options) error {
		o.requestBody = body
		return nil
	})
}

// WithJSONRequestBody encodes r as the request body.
func WithJSONRequestBody(r interface{}) Option {
	return optionFunc(func(o *options) error {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("json encode request body: %w", err)
		}
		o.requestBody = bytes.NewReader(b)
		return nil
	})
}

func WithRequestHeader(key, value string) Option {
	return optionFunc(func(o *options) error {
		o.requestHeaders.Add(key, value)
		return nil
	})
}

// WithSpanContext propagates sc in the request headers the way an upstream
// service traced by tracer would.
func WithSpanContext(tracer opentracing.Tracer, sc opentracing.SpanContext) Option {
	return optionFunc(func(o *options) error {
		carrier := opentracing.HTTPHeadersCarrier(o.requestHeaders)
		if err := tracer.Inject(sc, opentracing.HTTPHeaders, carrier); err != nil {
			return fmt.Errorf("inject span context: %w", err)
		}
		return nil
	})
}

func WithExpectedResponse(response []byte) Option {
	return optionFunc(func(o *options) error {
		o.expectedResponse = response
		return nil
	})
}

// WithExpectedJSONResponse validates that the response body is the JSON
// encoding of response.
func WithExpectedJSONResponse(response interface{}) Option {
	return optionFunc(func(o *options) error {
		o.expectedJSONResponse = response
		return nil
	})
}

// WithExpectedResponseHeader validates the value of a response header.
func WithExpectedResponseHeader(key, value string) Option {
	return optionFunc(func(o *options) error {
		if o.expectedHeaders == nil {
			o.expectedHeaders = make(map[string]string)
		}
		o.expectedHeaders[key] = value
		return nil
	})
}

// WithUnmarshalResponse decodes the JSON response body into response.
func WithUnmarshalResponse(response interface{}) Option {
	return optionFunc(func(o *options) error {
		o.unmarshalResponse = response
		return nil
	})
}

func WithNoResponseBody() Option {
	return optionFunc(func(o *options) error {
		o.noResponseBody = true
		return nil
	})
}

type options struct {
	ctx                  context.Context
	requestBody          io.Reader
	requestHeaders       http.Header
	expectedHeaders      map[string]string
	expectedResponse     []byte
	expectedJSONResponse interface{}
	unmarshalResponse    interface{}
	noResponseBody       bool
}

type Option interface {
	apply(*options) error
}
type optionFunc func(*options) error

func (f optionFunc) apply(r *options) error { return f(r) }
