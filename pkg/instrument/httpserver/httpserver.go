// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package httpserver traces inbound HTTP requests.
package httpserver

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/opentracing/opentracing-go/ext"
	"github.com/sett/tracer/pkg/spantag"
	"github.com/sett/tracer/pkg/tracectx"
	"github.com/sett/tracer/pkg/tracing"
)

// StatusError is reported to the span of a request that was answered with a
// server error status code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d %s", e.Code, http.StatusText(e.Code))
}

func (e *StatusError) StatusCode() int {
	return e.Code
}

// NewMiddleware returns an HTTP middleware that starts the root span of every
// request, parented to the trace identity in the request headers, and
// finishes it when the request has been served. Backend flushes are
// requested after every request and their failures are ignored.
func NewMiddleware(starter *tracing.SpanStarter) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer starter.Flush()

			ctx, unit := tracectx.Ensure(r.Context())
			r = r.WithContext(ctx)
			unit.SetRequest(r)

			span, ctx := starter.StartSpan(ctx, requestURL(r), tracing.KindServer)
			ext.HTTPMethod.Set(span, r.Method)
			starter.Record(ctx, spantag.Request, spantag.Data{}, span)
			starter.Record(ctx, spantag.Coroutine, spantag.Data{}, span)

			rw := &responseWriter{ResponseWriter: w}
			defer func() {
				if p := recover(); p != nil {
					unit.SetResponse(tracectx.ResponseInfo{StatusCode: http.StatusInternalServerError, Size: rw.size})
					span.SetTag(spantag.TagResponseStatus, strconv.Itoa(http.StatusInternalServerError))
					starter.Finish(ctx, span, fmt.Errorf("panic: %v", p))
					panic(p)
				}
			}()

			h.ServeHTTP(rw, r.WithContext(ctx))

			status := rw.status
			if status == 0 {
				status = http.StatusOK
			}
			unit.SetResponse(tracectx.ResponseInfo{StatusCode: status, Size: rw.size})
			ext.HTTPStatusCode.Set(span, uint16(status))
			starter.Record(ctx, spantag.Response, spantag.Data{}, span)

			var err error
			if status >= http.StatusInternalServerError {
				err = &StatusError{Code: status}
			}
			starter.Finish(ctx, span, err)
		})
	}
}

func requestURL(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if r.Host == "" {
		return r.RequestURI
	}
	return scheme + "://" + r.Host + r.RequestURI
}

type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *responseWriter) WriteHeader(s int) {
	if w.status == 0 {
		w.status = s
	}
	w.ResponseWriter.WriteHeader(s)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("hijack not supported")
	}
	return h.Hijack()
}
