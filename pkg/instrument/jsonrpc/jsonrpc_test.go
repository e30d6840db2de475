// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jsonrpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/sett/tracer/pkg/instrument/jsonrpc"
	"github.com/sett/tracer/pkg/jsonhttp/jsonhttptest"
	"github.com/sett/tracer/pkg/logging"
	"github.com/sett/tracer/pkg/spantag"
	"github.com/sett/tracer/pkg/switches"
	"github.com/sett/tracer/pkg/tracing"
	"resenje.org/web"
)

type order struct {
	ID   int    `json:"id"`
	Item string `json:"item"`
}

var errOutOfStock = &jsonrpc.Error{Code: 4001, Message: "out of stock"}

func newServer(t *testing.T, mt *mocktracer.MockTracer) *httptest.Server {
	t.Helper()

	logger := logging.New(io.Discard, 0)
	starter := tracing.NewSpanStarter(tracing.NewTracerFromOpentracing(mt, logger), switches.New(nil), spantag.New(nil), logger)

	s := jsonrpc.NewServer(starter, logger)
	s.Register("/orders/create", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var o order
		if err := json.Unmarshal(params, &o); err != nil {
			return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: err.Error()}
		}
		if o.Item == "unicorn" {
			return nil, errOutOfStock
		}
		o.ID = 7
		return o, nil
	})
	s.Register("/orders/noop", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return nil, nil
	})

	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return ts
}

func newStarter(mt *mocktracer.MockTracer) *tracing.SpanStarter {
	logger := logging.New(io.Discard, 0)
	return tracing.NewSpanStarter(tracing.NewTracerFromOpentracing(mt, logger), switches.New(nil), spantag.New(nil), logger)
}

func TestCall(t *testing.T) {
	mt := mocktracer.New()
	ts := newServer(t, mt)
	starter := newStarter(mt)
	client := jsonrpc.NewClient(ts.URL, "orders", starter)

	root, ctx := starter.StartSpan(context.Background(), "handler", "")

	var got order
	if err := client.Call(ctx, "create", order{Item: "tea"}, &got); err != nil {
		t.Fatal(err)
	}
	root.Finish()

	if diff := cmp.Diff(order{ID: 7, Item: "tea"}, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	spans := mt.FinishedSpans()
	if len(spans) != 3 {
		t.Fatalf("got %d finished spans, want 3", len(spans))
	}
	server, clientSpan := spans[0], spans[1]

	if clientSpan.OperationName != "rpc:/orders/create" {
		t.Errorf("got client operation %q", clientSpan.OperationName)
	}
	if clientSpan.ParentID != root.(*mocktracer.MockSpan).SpanContext.SpanID {
		t.Error("client span is not a child of the root span")
	}
	if server.SpanContext.TraceID != clientSpan.SpanContext.TraceID || server.ParentID != clientSpan.SpanContext.SpanID {
		t.Errorf("server span %+v is not a child of client span %+v", server.SpanContext, clientSpan.SpanContext)
	}
	for _, s := range []*mocktracer.MockSpan{server, clientSpan} {
		if got := s.Tag(jsonrpc.TagStatus); got != jsonrpc.StatusSuccess {
			t.Errorf("%s: got status %v, want %v", s.OperationName, got, jsonrpc.StatusSuccess)
		}
		if got := s.Tag(spantag.TagRPCPath); got != "/orders/create" {
			t.Errorf("%s: got path %v", s.OperationName, got)
		}
	}
	if got := server.Tag("span.kind"); got != tracing.KindServer {
		t.Errorf("got server span kind %v", got)
	}
	if got := clientSpan.Tag("span.kind"); got != tracing.KindClient {
		t.Errorf("got client span kind %v", got)
	}
}

func TestCall_error(t *testing.T) {
	mt := mocktracer.New()
	ts := newServer(t, mt)
	starter := newStarter(mt)
	client := jsonrpc.NewClient(ts.URL, "orders", starter)

	err := client.Call(context.Background(), "create", order{Item: "unicorn"}, nil)
	var rpcErr *jsonrpc.Error
	if !errors.As(err, &rpcErr) {
		t.Fatalf("got error %v, want rpc error", err)
	}
	if rpcErr.Code != errOutOfStock.Code {
		t.Errorf("got code %d, want %d", rpcErr.Code, errOutOfStock.Code)
	}

	for _, s := range mt.FinishedSpans() {
		if got := s.Tag(jsonrpc.TagStatus); got != jsonrpc.StatusFail {
			t.Errorf("%s: got status %v, want %v", s.OperationName, got, jsonrpc.StatusFail)
		}
		if s.Tag("error") != true {
			t.Errorf("%s: not tagged as error", s.OperationName)
		}
	}
}

func TestCall_statusPolicy(t *testing.T) {
	mt := mocktracer.New()
	ts := newServer(t, mt)
	starter := newStarter(mt)

	for _, tc := range []struct {
		name   string
		policy jsonrpc.StatusPolicy
		want   string
	}{
		{
			name: "default",
			want: jsonrpc.StatusFail,
		},
		{
			name: "no error",
			policy: func(resp *jsonrpc.Response, err error) string {
				if err == nil && resp != nil && resp.Error == nil {
					return jsonrpc.StatusSuccess
				}
				return jsonrpc.StatusFail
			},
			want: jsonrpc.StatusSuccess,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			mt.Reset()
			var opts []jsonrpc.ClientOption
			if tc.policy != nil {
				opts = append(opts, jsonrpc.WithStatusPolicy(tc.policy))
			}
			client := jsonrpc.NewClient(ts.URL, "orders", starter, opts...)

			if err := client.Call(context.Background(), "noop", nil, nil); err != nil {
				t.Fatal(err)
			}

			spans := mt.FinishedSpans()
			clientSpan := spans[len(spans)-1]
			if got := clientSpan.Tag(jsonrpc.TagStatus); got != tc.want {
				t.Errorf("got status %v, want %v", got, tc.want)
			}
		})
	}
}

func TestServer_contextWinsOverHeaders(t *testing.T) {
	mt := mocktracer.New()
	ts := newServer(t, mt)

	var resp jsonrpc.Response
	jsonhttptest.Request(t, ts.Client(), http.MethodPost, ts.URL, http.StatusOK,
		jsonhttptest.WithRequestHeader("Mockpfx-Ids-Traceid", "1"),
		jsonhttptest.WithRequestHeader("Mockpfx-Ids-Spanid", "2"),
		jsonhttptest.WithJSONRequestBody(jsonrpc.Request{
			JSONRPC: jsonrpc.Version,
			Method:  "/orders/create",
			Params:  json.RawMessage(`{"item":"tea"}`),
			ID:      "1",
			Context: map[string]string{
				"mockpfx-ids-traceid": "30",
				"mockpfx-ids-spanid":  "40",
			},
		}),
		jsonhttptest.WithUnmarshalResponse(&resp),
	)
	if resp.Error != nil {
		t.Fatalf("got error %v", resp.Error)
	}

	server := mt.FinishedSpans()[0]
	if server.SpanContext.TraceID != 30 || server.ParentID != 40 {
		t.Errorf("got trace %d parent %d, want trace 30 parent 40", server.SpanContext.TraceID, server.ParentID)
	}
}

func TestServer_errors(t *testing.T) {
	mt := mocktracer.New()
	ts := newServer(t, mt)

	for _, tc := range []struct {
		name string
		body interface{}
		code int
	}{
		{
			name: "method not found",
			body: jsonrpc.Request{JSONRPC: jsonrpc.Version, Method: "/orders/delete", ID: "1"},
			code: jsonrpc.CodeMethodNotFound,
		},
		{
			name: "invalid version",
			body: jsonrpc.Request{JSONRPC: "1.0", Method: "/orders/create", ID: "1"},
			code: jsonrpc.CodeInvalidRequest,
		},
		{
			name: "parse error",
			body: "not an object",
			code: jsonrpc.CodeParseError,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var resp jsonrpc.Response
			jsonhttptest.Request(t, ts.Client(), http.MethodPost, ts.URL, http.StatusOK,
				jsonhttptest.WithJSONRequestBody(tc.body),
				jsonhttptest.WithUnmarshalResponse(&resp),
			)
			if resp.Error == nil || resp.Error.Code != tc.code {
				t.Errorf("got error %v, want code %d", resp.Error, tc.code)
			}
		})
	}
}

func TestCall_panic(t *testing.T) {
	mt := mocktracer.New()
	starter := newStarter(mt)
	client := jsonrpc.NewClient("http://orders.local/rpc", "orders", starter, jsonrpc.WithHTTPClient(&http.Client{
		Transport: web.RoundTripperFunc(func(*http.Request) (*http.Response, error) {
			panic("proxy misconfigured")
		}),
	}))

	p := func() (p interface{}) {
		defer func() { p = recover() }()
		_ = client.Call(context.Background(), "create", order{Item: "tea"}, nil)
		return nil
	}()
	if p != "proxy misconfigured" {
		t.Fatalf("got panic %v, want proxy misconfigured", p)
	}

	spans := mt.FinishedSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d finished spans, want 1", len(spans))
	}
	s := spans[0]
	if s.OperationName != "rpc:/orders/create" || s.Tag("error") != true || s.Tag(jsonrpc.TagStatus) != jsonrpc.StatusFail {
		t.Errorf("got span %q with tags %v", s.OperationName, s.Tags())
	}
}
