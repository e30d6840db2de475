// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package api_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/sett/tracer"
	"github.com/sett/tracer/pkg/api"
	"github.com/sett/tracer/pkg/jsonhttp"
	"github.com/sett/tracer/pkg/jsonhttp/jsonhttptest"
	"github.com/sett/tracer/pkg/logging"
	"github.com/sett/tracer/pkg/spantag"
	"github.com/sett/tracer/pkg/switches"
	"github.com/sett/tracer/pkg/tracing"
)

type statusResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	APIVersion string `json:"apiVersion"`
}

type testServerOptions struct {
	Switches map[string]bool
	Probe    *api.Probe
}

type testServer struct {
	URL     string
	Client  *http.Client
	Service *api.Service
	Starter *tracing.SpanStarter
	Tracer  *mocktracer.MockTracer
}

func newTestServer(t *testing.T, o testServerOptions) *testServer {
	t.Helper()

	mt := mocktracer.New()
	logger := logging.New(io.Discard, 0)
	tr := tracing.NewTracerFromOpentracing(mt, logger)
	starter := tracing.NewSpanStarter(tr, switches.New(o.Switches), spantag.New(nil), logger)

	s := api.New(api.Options{
		Tracer:   tr,
		Starter:  starter,
		Switches: switches.New(o.Switches),
		Probe:    o.Probe,
		Logger:   logger,
	})
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	return &testServer{
		URL:     ts.URL,
		Client:  ts.Client(),
		Service: s,
		Starter: starter,
		Tracer:  mt,
	}
}

func TestHealth(t *testing.T) {
	probe := api.NewProbe()
	ts := newTestServer(t, testServerOptions{Probe: probe})

	jsonhttptest.Request(t, ts.Client, http.MethodGet, ts.URL+"/health", http.StatusOK,
		jsonhttptest.WithExpectedJSONResponse(statusResponse{
			Status:     "nok",
			Version:    tracer.Version,
			APIVersion: api.Version,
		}),
	)

	probe.SetHealthy(api.ProbeStatusOK)

	jsonhttptest.Request(t, ts.Client, http.MethodGet, ts.URL+"/health", http.StatusOK,
		jsonhttptest.WithExpectedJSONResponse(statusResponse{
			Status:     "ok",
			Version:    tracer.Version,
			APIVersion: api.Version,
		}),
	)

	if got := len(ts.Tracer.FinishedSpans()); got != 0 {
		t.Errorf("got %d spans for a probe, want none", got)
	}
}

func TestReadiness(t *testing.T) {
	probe := api.NewProbe()
	ts := newTestServer(t, testServerOptions{Probe: probe})

	jsonhttptest.Request(t, ts.Client, http.MethodGet, ts.URL+"/readiness", http.StatusBadRequest,
		jsonhttptest.WithExpectedJSONResponse(statusResponse{
			Status:     "notReady",
			Version:    tracer.Version,
			APIVersion: api.Version,
		}),
	)

	probe.SetReady(api.ProbeStatusOK)

	jsonhttptest.Request(t, ts.Client, http.MethodGet, ts.URL+"/readiness", http.StatusOK,
		jsonhttptest.WithExpectedJSONResponse(statusResponse{
			Status:     "ready",
			Version:    tracer.Version,
			APIVersion: api.Version,
		}),
	)
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t, testServerOptions{})
	ts.Service.MustRegisterMetrics(ts.Service.Metrics()...)

	jsonhttptest.Request(t, ts.Client, http.MethodGet, ts.URL+"/health", http.StatusOK)

	resp, err := ts.Client.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %v, want %v", resp.StatusCode, http.StatusOK)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		"tracer_info",
		"tracer_api_request_count",
		"tracer_api_response_duration_seconds",
	} {
		if !strings.Contains(string(b), "\n"+name) {
			t.Errorf("metric %s not exposed", name)
		}
	}
}

func TestNotFound(t *testing.T) {
	ts := newTestServer(t, testServerOptions{})

	jsonhttptest.Request(t, ts.Client, http.MethodGet, ts.URL+"/v1/unknown", http.StatusNotFound,
		jsonhttptest.WithExpectedJSONResponse(jsonhttp.StatusResponse{
			Message: http.StatusText(http.StatusNotFound),
			Code:    http.StatusNotFound,
		}),
	)
}

func TestSwitches(t *testing.T) {
	ts := newTestServer(t, testServerOptions{
		Switches: map[string]bool{switches.DB: true},
	})

	want := switches.Defaults()
	want[switches.DB] = true

	jsonhttptest.Request(t, ts.Client, http.MethodGet, ts.URL+"/v1/switches", http.StatusOK,
		jsonhttptest.WithExpectedJSONResponse(want),
	)

	spans := ts.Tracer.FinishedSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if got, want := spans[0].OperationName, ts.URL+"/v1/switches"; got != want {
		t.Errorf("got span %q, want %q", got, want)
	}
}
