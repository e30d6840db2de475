// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/sett/tracer/pkg/jsonhttp"
	"github.com/sett/tracer/pkg/spantag"
	"github.com/sett/tracer/pkg/tracectx"
	"github.com/sett/tracer/pkg/tracing"
	"go.uber.org/atomic"
)

// ErrUnexpectedStatus is returned by Client.Call if the server responds with
// an HTTP status that does not carry a JSON-RPC response.
var ErrUnexpectedStatus = errors.New("unexpected http status")

// StatusPolicy derives the value of the rpc.status tag from the outcome of a
// call. The response is nil if no response has been received.
type StatusPolicy func(resp *Response, err error) string

// DefaultStatusPolicy reports success when the response carries a non-empty
// result and fail otherwise.
func DefaultStatusPolicy(resp *Response, err error) string {
	if resp == nil || len(resp.Result) == 0 || string(resp.Result) == "null" {
		return StatusFail
	}
	return StatusSuccess
}

// Client calls methods of a remote JSON-RPC service.
type Client struct {
	endpoint   string
	service    string
	httpClient *http.Client
	starter    *tracing.SpanStarter
	status     StatusPolicy
	ids        atomic.Uint64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used to send requests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithStatusPolicy replaces the DefaultStatusPolicy.
func WithStatusPolicy(p StatusPolicy) ClientOption {
	return func(cl *Client) { cl.status = p }
}

// NewClient returns a Client for the service exposed at the endpoint URL.
func NewClient(endpoint, service string, starter *tracing.SpanStarter, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   endpoint,
		service:    service,
		httpClient: http.DefaultClient,
		starter:    starter,
		status:     DefaultStatusPolicy,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Path returns the RPC path of the method.
func (c *Client) Path(method string) string {
	return "/" + c.service + "/" + method
}

// Call invokes the method with params and decodes the result into result, if
// it is not nil. The identity of the client span is sent in the request
// context so that the server span joins the same trace.
func (c *Client) Call(ctx context.Context, method string, params, result interface{}) (err error) {
	path := c.Path(method)

	span, ctx := c.starter.StartSpan(ctx, "rpc:"+path, tracing.KindClient)
	c.starter.Record(ctx, spantag.RPC, spantag.Data{Keys: map[string]string{"path": path}}, span)

	carrier := c.starter.Inject(span, nil)
	if unit, ok := tracectx.FromContext(ctx); ok {
		unit.SetCarrier(carrier)
	}

	var resp *Response
	defer func() {
		if p := recover(); p != nil {
			span.SetTag(TagStatus, StatusFail)
			c.starter.Finish(ctx, span, fmt.Errorf("panic: %v", p))
			panic(p)
		}
		span.SetTag(TagStatus, c.status(resp, err))
		c.starter.Finish(ctx, span, err)
	}()

	req := Request{
		JSONRPC: Version,
		Method:  path,
		ID:      strconv.FormatUint(c.ids.Inc(), 10),
		Context: carrier,
	}
	if params != nil {
		if req.Params, err = json.Marshal(params); err != nil {
			return fmt.Errorf("encode params: %w", err)
		}
	}

	resp, err = c.send(ctx, req)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result != nil && len(resp.Result) > 0 {
		if err = json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	r.Header.Set("Content-Type", jsonhttp.DefaultContentTypeHeader)

	res, err := c.httpClient.Do(r)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, res.Status)
	}

	var resp Response
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}
