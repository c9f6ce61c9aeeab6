// Package fasthttpclient implements client.Client over
// github.com/valyala/fasthttp.
package fasthttpclient

import (
	"context"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/tigrawap/objload/internal/body"
	"github.com/tigrawap/objload/internal/request"
)

// Client executes requests over a pooled fasthttp.Client.
type Client struct {
	http *fasthttp.Client
	// BytesPerSecond, when non-zero, throttles every outgoing request
	// body to this rate (see body.ThrottledReader).
	BytesPerSecond int
}

// New constructs a Client. bytesPerSecond of 0 disables body throttling.
func New(bytesPerSecond int) *Client {
	return &Client{
		http:           &fasthttp.Client{},
		BytesPerSecond: bytesPerSecond,
	}
}

// Execute sends req and returns the observed response. Errors returned
// here are transport failures (connection refused, timeout, malformed
// response); non-2xx/3xx status codes are returned as ordinary
// Responses, not errors — callers classify those.
func (c *Client) Execute(ctx context.Context, req *request.Request) (*request.Response, error) {
	httpReq := fasthttp.AcquireRequest()
	httpResp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(httpReq)
	defer fasthttp.ReleaseResponse(httpResp)

	httpReq.SetRequestURI(req.URI.String())
	httpReq.Header.SetMethod(string(req.Method))
	httpReq.Header.Set("Connection", "keep-alive")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if req.Body.Size > 0 {
		stream := req.Body.Stream()
		if c.BytesPerSecond > 0 {
			stream = body.NewThrottledReader(ctx, stream, c.BytesPerSecond)
		}
		httpReq.SetBodyStream(stream, int(req.Body.Size))
	}

	start := time.Now()
	err := c.doWithContext(ctx, httpReq, httpResp)
	elapsed := time.Since(start)

	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	respBody := make([]byte, len(httpResp.Body()))
	copy(respBody, httpResp.Body())

	headers := make(request.Headers)
	httpResp.Header.VisitAll(func(key, value []byte) {
		headers[string(key)] = string(value)
	})

	return &request.Response{
		StatusCode: httpResp.StatusCode(),
		Headers:    headers,
		Body:       respBody,
		Context: map[string]string{
			"x-og-response-latency-ns": fmt.Sprintf("%d", elapsed.Nanoseconds()),
		},
	}, nil
}

func (c *Client) doWithContext(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	if deadline, ok := ctx.Deadline(); ok {
		return c.http.DoDeadline(req, resp, deadline)
	}

	done := make(chan error, 1)
	go func() { done <- c.http.Do(req, resp) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
