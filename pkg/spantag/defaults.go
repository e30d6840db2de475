// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spantag

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/opentracing/opentracing-go"
	"github.com/sett/tracer/pkg/tracectx"
)

// Tag keys set by the default recipes.
const (
	TagHTTPURL          = "http.url"
	TagHTTPMethod       = "http.method"
	TagHTTPHeaders      = "http.headers"
	TagHTTPGetParams    = "http.get.params"
	TagHTTPPostParams   = "http.post.params"
	TagResponseStatus   = "response.status"
	TagRedisArguments   = "redis.arguments"
	TagExceptionClass   = "exception.class"
	TagExceptionCode    = "exception.code"
	TagExceptionMessage = "exception.error"
	TagExceptionTrace   = "exception.trace"
	TagCoroutineID      = "coroutine.id"
	TagRPCPath          = "rpc.path"
)

// Defaults returns a fresh copy of the default recipes.
func Defaults() map[string]Callback {
	return map[string]Callback{
		HTTPClient: httpClientTags,
		Redis:      redisTags,
		DB:         dbTags,
		Exception:  exceptionTags,
		Request:    requestTags,
		Coroutine:  coroutineTags,
		Response:   responseTags,
		RPC:        rpcTags,
	}
}

func httpClientTags(span opentracing.Span, data Data) {
	span.SetTag(TagHTTPURL, keyOrNull(data.Keys, "uri"))
	span.SetTag(TagHTTPMethod, keyOrNull(data.Keys, "method"))
}

func redisTags(span opentracing.Span, data Data) {
	setRequestTags(span, data.Context)
	span.SetTag(TagRedisArguments, encode(data.Arguments))
}

func dbTags(span opentracing.Span, data Data) {
	setRequestTags(span, data.Context)
}

func exceptionTags(span opentracing.Span, data Data) {
	setRequestTags(span, data.Context)
	err := data.Err
	if err == nil {
		return
	}
	span.SetTag(TagExceptionClass, fmt.Sprintf("%T", err))
	span.SetTag(TagExceptionCode, ErrorCode(err))
	span.SetTag(TagExceptionMessage, err.Error())
	span.SetTag(TagExceptionTrace, fmt.Sprintf("%+v", err))
}

func requestTags(span opentracing.Span, data Data) {
	r, ok := request(data.Context)
	if !ok {
		return
	}
	span.SetTag(TagHTTPURL, r.URL.String())
	span.SetTag(TagHTTPHeaders, encode(r.Header))
	span.SetTag(TagHTTPGetParams, encode(r.URL.Query()))
	if r.PostForm != nil {
		span.SetTag(TagHTTPPostParams, encode(r.PostForm))
	} else {
		span.SetTag(TagHTTPPostParams, "[]")
	}
}

func coroutineTags(span opentracing.Span, data Data) {
	if data.Context == nil {
		return
	}
	if c, ok := tracectx.FromContext(data.Context); ok {
		span.SetTag(TagCoroutineID, c.ID())
	}
}

func responseTags(span opentracing.Span, data Data) {
	if data.Context == nil {
		return
	}
	c, ok := tracectx.FromContext(data.Context)
	if !ok {
		return
	}
	if r, ok := c.Response(); ok {
		span.SetTag(TagResponseStatus, strconv.Itoa(r.StatusCode))
	}
}

func rpcTags(span opentracing.Span, data Data) {
	if p, ok := data.Keys["path"]; ok {
		span.SetTag(TagRPCPath, p)
	}
}

func setRequestTags(span opentracing.Span, ctx context.Context) {
	r, ok := request(ctx)
	if !ok {
		return
	}
	span.SetTag(TagHTTPURL, r.URL.String())
	span.SetTag(TagHTTPHeaders, encode(r.Header))
}

func request(ctx context.Context) (*http.Request, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := tracectx.FromContext(ctx)
	if !ok {
		return nil, false
	}
	return c.Request()
}

// ErrorCode returns the numeric code of err if it exposes one through a Code,
// StatusCode or ErrorCode method, otherwise 0.
func ErrorCode(err error) int {
	switch e := err.(type) {
	case interface{ Code() int }:
		return e.Code()
	case interface{ StatusCode() int }:
		return e.StatusCode()
	case interface{ ErrorCode() int }:
		return e.ErrorCode()
	}
	return 0
}

func keyOrNull(keys map[string]string, key string) string {
	if v, ok := keys[key]; ok {
		return v
	}
	return "null"
}

func encode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
