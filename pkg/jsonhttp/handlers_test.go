// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jsonhttp_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sett/tracer/pkg/jsonhttp"
)

func TestMethodHandler(t *testing.T) {
	h := jsonhttp.MethodHandler{
		"POST": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, err := io.ReadAll(r.Body)
			if err != nil {
				t.Fatal(err)
			}
			fmt.Fprint(w, "got: ", string(got))
		}),
	}

	t.Run("method allowed", func(t *testing.T) {
		body := "test body"

		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		w := httptest.NewRecorder()

		h.ServeHTTP(w, r)

		statusCode := w.Result().StatusCode
		if statusCode != http.StatusOK {
			t.Errorf("got status code %d, want %d", statusCode, http.StatusOK)
		}

		wantBody := "got: " + body
		gotBody := w.Body.String()

		if gotBody != wantBody {
			t.Errorf("got body %q, want %q", gotBody, wantBody)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		h.ServeHTTP(w, r)

		statusCode := w.Result().StatusCode
		wantCode := http.StatusMethodNotAllowed
		if statusCode != wantCode {
			t.Errorf("got status code %d, want %d", statusCode, wantCode)
		}

		var m *jsonhttp.StatusResponse

		if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
			t.Errorf("json unmarshal response body: %s", err)
		}

		if m.Code != wantCode {
			t.Errorf("got message code %d, want %d", m.Code, wantCode)
		}

		wantMessage := http.StatusText(wantCode)
		if m.Message != wantMessage {
			t.Errorf("got message message %q, want %q", m.Message, wantMessage)
		}
	})
}

func TestNotFoundHandler(t *testing.T) {
	w := httptest.NewRecorder()

	jsonhttp.NotFoundHandler(w, nil)

	statusCode := w.Result().StatusCode
	wantCode := http.StatusNotFound
	if statusCode != wantCode {
		t.Errorf("got status code %d, want %d", statusCode, wantCode)
	}

	var m *jsonhttp.StatusResponse

	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Errorf("json unmarshal response body: %s", err)
	}

	if m.Code != wantCode {
		t.Errorf("got message code %d, want %d", m.Code, wantCode)
	}

	wantMessage := http.StatusText(wantCode)
	if m.Message != wantMessage {
		t.Errorf("got message message %q, want %q", m.Message, wantMessage)
	}
}

func TestNewMaxBodyBytesHandler(t *testing.T) {
	var limit int64 = 10

	h := jsonhttp.NewMaxBodyBytesHandler(limit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := io.ReadAll(r.Body)
		if jsonhttp.HandleBodyReadError(err, w) {
			return
		}
		if err != nil {
			jsonhttp.InternalServerError(w, nil)
			return
		}
		jsonhttp.OK(w, nil)
	}))

	for _, tc := range []struct {
		name                 string
		body                 string
		withoutContentLength bool
		wantCode             int
	}{
		{
			name:     "empty",
			wantCode: http.StatusOK,
		},
		{
			name:     "within limit",
			body:     "data",
			wantCode: http.StatusOK,
		},
		{
			name:     "over limit",
			body:     "long test data",
			wantCode: http.StatusRequestEntityTooLarge,
		},
		{
			name:                 "over limit without content length",
			body:                 "long test data",
			withoutContentLength: true,
			wantCode:             http.StatusRequestEntityTooLarge,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			if tc.withoutContentLength {
				r.ContentLength = -1
			}
			w := httptest.NewRecorder()

			h.ServeHTTP(w, r)

			if got := w.Result().StatusCode; got != tc.wantCode {
				t.Errorf("got status code %d, want %d", got, tc.wantCode)
			}
		})
	}
}

func TestRespond(t *testing.T) {
	for _, tc := range []struct {
		name     string
		code     int
		response interface{}
		wantBody string
	}{
		{
			name:     "default message",
			code:     http.StatusServiceUnavailable,
			wantBody: `{"message":"Service Unavailable","code":503}`,
		},
		{
			name:     "string message",
			code:     http.StatusBadRequest,
			response: "invalid method",
			wantBody: `{"message":"invalid method","code":400}`,
		},
		{
			name:     "error message",
			code:     http.StatusBadGateway,
			response: fmt.Errorf("upstream <rpc> failed"),
			wantBody: `{"message":"upstream <rpc> failed","code":502}`,
		},
		{
			name:     "zero code",
			response: map[string]string{"status": "ok"},
			wantBody: `{"status":"ok"}`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			jsonhttp.Respond(w, tc.code, tc.response)

			if got := strings.TrimSpace(w.Body.String()); got != tc.wantBody {
				t.Errorf("got body %s, want %s", got, tc.wantBody)
			}
			if got := w.Header().Get("Content-Type"); got != jsonhttp.DefaultContentTypeHeader {
				t.Errorf("got content type %q, want %q", got, jsonhttp.DefaultContentTypeHeader)
			}
		})
	}
}
