// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package httpserver_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/sett/tracer/pkg/instrument/httpserver"
	"github.com/sett/tracer/pkg/logging"
	"github.com/sett/tracer/pkg/spantag"
	"github.com/sett/tracer/pkg/switches"
	"github.com/sett/tracer/pkg/tracectx"
	"github.com/sett/tracer/pkg/tracing"
)

func TestMiddleware(t *testing.T) {
	starter, mt := newStarter(t, nil)

	var childParent int
	h := httpserver.NewMiddleware(starter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		child, _ := starter.StartSpan(r.Context(), "load order", "")
		childParent = child.(*mocktracer.MockSpan).ParentID
		child.Finish()

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))

	r := httptest.NewRequest(http.MethodPost, "http://orders.local/orders?dry=1", nil)
	r.Header.Set("Mockpfx-Ids-Traceid", "100")
	r.Header.Set("Mockpfx-Ids-Spanid", "200")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusCreated)
	}

	spans := mt.FinishedSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d finished spans, want 2", len(spans))
	}
	root := spans[1]
	if root.OperationName != "http://orders.local/orders?dry=1" {
		t.Errorf("got operation name %q", root.OperationName)
	}
	if root.SpanContext.TraceID != 100 || root.ParentID != 200 {
		t.Errorf("got trace %d parent %d, want trace 100 parent 200", root.SpanContext.TraceID, root.ParentID)
	}
	if childParent != root.SpanContext.SpanID {
		t.Errorf("got child parent %d, want %d", childParent, root.SpanContext.SpanID)
	}
	for tag, want := range map[string]interface{}{
		"span.kind":               tracing.KindServer,
		"http.method":             http.MethodPost,
		"http.status_code":        uint16(http.StatusCreated),
		spantag.TagResponseStatus: "201",
		spantag.TagHTTPURL:        "http://orders.local/orders?dry=1",
		spantag.TagHTTPGetParams:  `{"dry":["1"]}`,
	} {
		if got := root.Tag(tag); got != want {
			t.Errorf("got tag %s %v, want %v", tag, got, want)
		}
	}
	if root.Tag("error") != nil {
		t.Error("successful request tagged as error")
	}
}

func TestMiddleware_serverError(t *testing.T) {
	starter, mt := newStarter(t, map[string]bool{switches.Exception: true})

	h := httpserver.NewMiddleware(starter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders", nil))

	root := mt.FinishedSpans()[0]
	if root.Tag("error") != true {
		t.Error("failed request not tagged as error")
	}
	if got := root.Tag(spantag.TagExceptionCode); got != http.StatusBadGateway {
		t.Errorf("got exception code %v, want %v", got, http.StatusBadGateway)
	}
	if got := root.Tag(spantag.TagResponseStatus); got != "502" {
		t.Errorf("got response status %v, want 502", got)
	}
}

func TestMiddleware_panic(t *testing.T) {
	starter, mt := newStarter(t, nil)

	h := httpserver.NewMiddleware(starter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	func() {
		defer func() {
			if p := recover(); p != "boom" {
				t.Errorf("got panic %v, want boom", p)
			}
		}()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}()

	spans := mt.FinishedSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d finished spans, want 1", len(spans))
	}
	if spans[0].Tag("error") != true {
		t.Error("panicking request not tagged as error")
	}
	if got := spans[0].Tag(spantag.TagResponseStatus); got != "500" {
		t.Errorf("got response status %v, want 500", got)
	}
}

func TestMiddleware_reusesUnit(t *testing.T) {
	starter, _ := newStarter(t, nil)

	var unitID string
	h := httpserver.NewMiddleware(starter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, _ := tracectx.FromContext(r.Context())
		unitID = c.ID()
	}))

	ctx := tracectx.New(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	unit, _ := tracectx.FromContext(ctx)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))

	if unitID != unit.ID() {
		t.Errorf("got unit %q, want %q", unitID, unit.ID())
	}
	if _, ok := unit.RootSpan(); !ok {
		t.Error("root span not published to the outer unit")
	}
}

func newStarter(t *testing.T, sw map[string]bool) (*tracing.SpanStarter, *mocktracer.MockTracer) {
	t.Helper()

	mt := mocktracer.New()
	logger := logging.New(io.Discard, 0)
	return tracing.NewSpanStarter(tracing.NewTracerFromOpentracing(mt, logger), switches.New(sw), spantag.New(nil), logger), mt
}
