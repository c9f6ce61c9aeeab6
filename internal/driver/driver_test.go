package driver

import (
	"context"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tigrawap/objload/internal/body"
	"github.com/tigrawap/objload/internal/eventbus"
	"github.com/tigrawap/objload/internal/request"
)

type countingSupplier struct {
	n int64
}

func (s *countingSupplier) Get() (*request.Request, error) {
	atomic.AddInt64(&s.n, 1)
	u, _ := url.Parse("http://example.invalid/c/o")
	return &request.Request{
		Method:    request.MethodGet,
		URI:       u,
		Headers:   request.Headers{},
		Body:      body.None(),
		Operation: request.OperationRead,
		Context:   map[string]string{},
	}, nil
}

type fakeClient struct {
	delay time.Duration
	calls int64
}

func (c *fakeClient) Execute(ctx context.Context, req *request.Request) (*request.Response, error) {
	atomic.AddInt64(&c.calls, 1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &request.Response{StatusCode: 200, Headers: request.Headers{}, Context: map[string]string{}}, nil
}

func TestRunStopsOnMaxOperations(t *testing.T) {
	supplier := &countingSupplier{}
	fc := &fakeClient{}
	d := New(Config{
		Supplier:       supplier,
		Client:         fc,
		Concurrency:    4,
		StopConditions: []StopCondition{MaxOperations(25)},
		Graceful:       true,
	})

	result, err := d.Run(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, result.TotalOperations, int64(25))
	require.Equal(t, "stop condition met", result.StoppedReason)
}

func TestRunStopsOnMaxDurationWithinTolerance(t *testing.T) {
	supplier := &countingSupplier{}
	fc := &fakeClient{}
	d := New(Config{
		Supplier:       supplier,
		Client:         fc,
		Concurrency:    4,
		StopConditions: []StopCondition{MaxDuration(100 * time.Millisecond)},
		Graceful:       true,
	})

	start := time.Now()
	result, err := d.Run(context.Background())
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	require.Less(t, elapsed, 600*time.Millisecond)
	require.Equal(t, "stop condition met", result.StoppedReason)
}

func TestRunPublishesCompletedRequestsOnBus(t *testing.T) {
	supplier := &countingSupplier{}
	fc := &fakeClient{}
	bus := eventbus.New(nil)
	var posted int64
	bus.Subscribe(func(req *request.Request, resp *request.Response) {
		atomic.AddInt64(&posted, 1)
	})

	d := New(Config{
		Supplier:       supplier,
		Client:         fc,
		Bus:            bus,
		Concurrency:    2,
		StopConditions: []StopCondition{MaxOperations(10)},
		Graceful:       true,
	})

	result, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, result.TotalOperations, atomic.LoadInt64(&posted))
}

func TestRunGracefulWaitsForInFlightRequests(t *testing.T) {
	supplier := &countingSupplier{}
	fc := &fakeClient{delay: 50 * time.Millisecond}
	d := New(Config{
		Supplier:       supplier,
		Client:         fc,
		Concurrency:    3,
		StopConditions: []StopCondition{MaxOperations(3)},
		Graceful:       true,
	})

	result, err := d.Run(context.Background())
	require.NoError(t, err)
	// Stop conditions only see completed requests, so more than 3 may be
	// admitted; graceful shutdown must still wait for every one of them.
	require.Equal(t, atomic.LoadInt64(&fc.calls), result.TotalOperations)
	require.GreaterOrEqual(t, result.TotalOperations, int64(3))
}

func TestRunRespectsExternalCancellation(t *testing.T) {
	supplier := &countingSupplier{}
	fc := &fakeClient{}
	d := New(Config{
		Supplier:    supplier,
		Client:      fc,
		Concurrency: 2,
		Graceful:    true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	result, err := d.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, "context cancelled", result.StoppedReason)
}
