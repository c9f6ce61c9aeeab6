// Package driver owns the runtime of a load test: it pulls requests
// from a composite supplier, paces them through a scheduler, executes
// them through a bounded worker pool, and publishes every completed
// request/response pair on an event bus for subscribers (object
// population bookkeeping, multipart session updates, statistics) to
// consume. Stopping conditions and graceful-vs-immediate shutdown are
// both expressed through a single context.Context.
package driver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tigrawap/objload/internal/client"
	"github.com/tigrawap/objload/internal/eventbus"
	"github.com/tigrawap/objload/internal/logging"
	"github.com/tigrawap/objload/internal/ogerrors"
	"github.com/tigrawap/objload/internal/request"
	"github.com/tigrawap/objload/internal/workerpool"
)

// RequestSupplier produces the next request to send. A *reqsupplier.Supplier
// and a *multipart.Manager both satisfy this directly.
type RequestSupplier interface {
	Get() (*request.Request, error)
}

// Authorizer signs a request in place before it is sent.
type Authorizer interface {
	Authorize(req *request.Request) error
}

// Config describes a single load-test run.
type Config struct {
	Supplier       RequestSupplier
	Authorizer     Authorizer
	Client         client.Client
	Scheduler      Scheduler
	Concurrency    int
	StopConditions []StopCondition
	Bus            *eventbus.Bus
	// Graceful, when true, waits for in-flight requests to complete
	// after a stop condition fires or ctx is cancelled instead of
	// abandoning them.
	Graceful bool
	// OnError, if set, is notified of transport and authorization
	// failures (which never produce a Response and so never reach Bus).
	OnError func(op request.Operation)
}

// Result summarizes a finished run.
type Result struct {
	TotalOperations  int64
	TotalAborts      int64
	StatusCodeCounts map[int]int64
	Elapsed          time.Duration
	StoppedReason    string
}

// Driver runs one load test to completion.
type Driver struct {
	cfg      Config
	pool     *workerpool.Pool
	counters *Counters
}

// New constructs a Driver from cfg. Concurrency defaults to 1 if unset;
// Scheduler defaults to ConcurrencyScheduler (pure concurrency-capped
// admission, no inter-arrival pacing) if unset.
func New(cfg Config) *Driver {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = ConcurrencyScheduler{}
	}
	return &Driver{
		cfg:      cfg,
		pool:     workerpool.New(cfg.Concurrency),
		counters: newCounters(),
	}
}

// Run drives the workload until a stop condition fires or ctx is
// cancelled, then shuts down per cfg.Graceful: graceful shutdown awaits
// every in-flight request; immediate shutdown cancels the context of
// in-flight requests and returns as soon as admission stops, without
// waiting for them.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	runCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()

	// execCtx governs in-flight requests. Graceful shutdown leaves it as
	// the caller's own ctx, so a stop condition never reaches already-
	// dispatched requests; immediate shutdown gives it its own
	// cancellation tied to stop(), so in-flight requests are cancelled
	// the moment admission stops.
	execCtx := ctx
	cancelExec := func() {}
	if !d.cfg.Graceful {
		var c context.CancelFunc
		execCtx, c = context.WithCancel(ctx)
		cancelExec = c
		defer c()
	}

	var stopOnce sync.Once
	stopReason := ""
	stop := func(reason string) {
		stopOnce.Do(func() {
			stopReason = reason
			cancelLoop()
			cancelExec()
		})
	}

emit:
	for {
		select {
		case <-runCtx.Done():
			if stopReason == "" {
				stopReason = "context cancelled"
			}
			break emit
		default:
		}

		for _, cond := range d.cfg.StopConditions {
			if cond(d.counters) {
				stop("stop condition met")
				break emit
			}
		}

		if !d.cfg.Scheduler.Wait(runCtx) {
			if stopReason == "" {
				stopReason = "context cancelled"
			}
			break emit
		}

		req, err := d.cfg.Supplier.Get()
		if err != nil {
			var popErr *ogerrors.PopulationError
			if errors.As(err, &popErr) {
				// Read/delete requested but nothing eligible; the
				// request is dropped, not counted as a failure.
				continue
			}
			return nil, err
		}

		if err := d.pool.Submit(runCtx, func() { d.execute(execCtx, req) }); err != nil {
			if stopReason == "" {
				stopReason = "context cancelled"
			}
			break emit
		}
	}

	if d.cfg.Graceful {
		d.pool.Wait()
	}

	return &Result{
		TotalOperations:  d.counters.Total(),
		TotalAborts:      d.counters.Aborts(),
		StatusCodeCounts: d.counters.snapshotStatusCodes(),
		Elapsed:          d.counters.Elapsed(),
		StoppedReason:    stopReason,
	}, nil
}

// execute signs, sends, and records one request. It never returns an
// error: transport failures and authorization failures are both
// recorded as aborts.
func (d *Driver) execute(ctx context.Context, req *request.Request) {
	if d.cfg.Authorizer != nil {
		if err := d.cfg.Authorizer.Authorize(req); err != nil {
			d.counters.recordAbort()
			logging.Log().Error().Err(err).Str("operation", string(req.Operation)).Msg("request authorization failed")
			if d.cfg.OnError != nil {
				d.cfg.OnError(req.Operation)
			}
			return
		}
	}

	resp, err := d.cfg.Client.Execute(ctx, req)
	if err != nil {
		d.counters.recordAbort()
		logging.Log().Warn().Err(err).Str("operation", string(req.Operation)).Msg("request failed")
		if d.cfg.OnError != nil {
			d.cfg.OnError(req.Operation)
		}
		return
	}

	d.counters.recordStatus(resp.StatusCode)
	if d.cfg.Bus != nil {
		d.cfg.Bus.Post(req, resp)
	}
}
