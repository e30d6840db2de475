// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracing_test

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/sett/tracer/pkg/tracing"
)

func TestCarrierFromHTTPHeaders(t *testing.T) {
	h := make(http.Header)
	h.Set("Mockpfx-Ids-Traceid", "7")
	h.Add("X-Forwarded-For", "10.0.0.1")
	h.Add("X-Forwarded-For", "10.0.0.2")
	h["Empty"] = nil

	got := tracing.CarrierFromHTTPHeaders(h)
	want := tracing.Carrier{
		"mockpfx-ids-traceid": "7",
		"x-forwarded-for":     "10.0.0.1",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("carrier mismatch (-want +got):\n%s", diff)
	}
}

func TestInjectExtract(t *testing.T) {
	mt := mocktracer.New()
	tracer := tracing.NewTracerFromOpentracing(mt, nil)

	span := mt.StartSpan("upstream")
	defer span.Finish()

	c := tracer.Inject(span.Context(), nil)
	if c["mockpfx-ids-traceid"] == "" || c["mockpfx-ids-spanid"] == "" {
		t.Fatalf("span identity not injected: %v", c)
	}

	sc, ok := tracer.Extract(c)
	if !ok {
		t.Fatal("span context not extracted")
	}
	got := sc.(mocktracer.MockSpanContext)
	want := span.Context().(mocktracer.MockSpanContext)
	if got.TraceID != want.TraceID || got.SpanID != want.SpanID {
		t.Errorf("got span context %+v, want %+v", got, want)
	}
}

func TestExtract_noParent(t *testing.T) {
	tracer := tracing.NewTracerFromOpentracing(mocktracer.New(), nil)

	for _, tc := range []struct {
		name    string
		carrier tracing.Carrier
		failed  float64
	}{
		{
			name: "nil",
		},
		{
			name:    "empty",
			carrier: tracing.Carrier{},
		},
		{
			name:    "unrelated keys",
			carrier: tracing.Carrier{"accept": "*/*"},
			failed:  1,
		},
		{
			name:    "malformed",
			carrier: tracing.Carrier{"mockpfx-ids-traceid": "zz", "mockpfx-ids-spanid": "1"},
			failed:  2,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sc, ok := tracer.Extract(tc.carrier)
			if ok || sc != nil {
				t.Fatalf("got span context %v", sc)
			}
			if got := tracer.ExtractFailedCount(); got != tc.failed {
				t.Errorf("got %v failed extractions, want %v", got, tc.failed)
			}
		})
	}
}

func TestInject_nilSpanContext(t *testing.T) {
	tracer := tracing.NewTracerFromOpentracing(mocktracer.New(), nil)

	c := tracing.Carrier{"a": "b"}
	got := tracer.Inject(nil, c)
	if diff := cmp.Diff(tracing.Carrier{"a": "b"}, got); diff != "" {
		t.Errorf("carrier mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_zipkinWithoutB3(t *testing.T) {
	tracer, closer, err := tracing.NewTracer(&tracing.Options{
		ServiceName: "test",
		Zipkin: tracing.ZipkinOptions{
			EndpointURL: "http://localhost:9411/api/v2/spans",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	if _, ok := tracer.Extract(tracing.Carrier{"x-request-id": "abc"}); ok {
		t.Error("span context extracted from a carrier without b3 headers")
	}
	if got := tracer.ExtractCount(); got != 0 {
		t.Errorf("got extract count %v, want 0", got)
	}
	if got := tracer.ExtractFailedCount(); got != 1 {
		t.Errorf("got extract failed count %v, want 1", got)
	}

	span := tracer.Opentracing().StartSpan("upstream")
	defer span.Finish()
	if _, ok := tracer.Extract(tracer.Inject(span.Context(), nil)); !ok {
		t.Error("span context not extracted from b3 headers")
	}
	if got := tracer.ExtractCount(); got != 1 {
		t.Errorf("got extract count %v, want 1", got)
	}
}
