package driver

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counters accumulates the numbers stopping conditions evaluate against:
// total operations, aborts (transport failures, never a server
// response), and a per-status-code tally.
type Counters struct {
	total            int64
	aborts           int64
	mu               sync.Mutex
	statusCodeCounts map[int]int64
	startedAt        time.Time
}

func newCounters() *Counters {
	return &Counters{
		statusCodeCounts: make(map[int]int64),
		startedAt:        time.Now(),
	}
}

func (c *Counters) recordStatus(code int) {
	atomic.AddInt64(&c.total, 1)
	c.mu.Lock()
	c.statusCodeCounts[code]++
	c.mu.Unlock()
}

func (c *Counters) recordAbort() {
	atomic.AddInt64(&c.total, 1)
	atomic.AddInt64(&c.aborts, 1)
}

// Total reports the number of requests observed so far (including aborts).
func (c *Counters) Total() int64 { return atomic.LoadInt64(&c.total) }

// Aborts reports the number of requests that never produced a server
// response.
func (c *Counters) Aborts() int64 { return atomic.LoadInt64(&c.aborts) }

// StatusCodeCount reports how many responses carried the given status code.
func (c *Counters) StatusCodeCount(code int) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusCodeCounts[code]
}

// Elapsed reports the wall-clock time since the counters were created.
func (c *Counters) Elapsed() time.Duration { return time.Since(c.startedAt) }

func (c *Counters) snapshotStatusCodes() map[int]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]int64, len(c.statusCodeCounts))
	for k, v := range c.statusCodeCounts {
		out[k] = v
	}
	return out
}

// StopCondition reports whether a run should stop admitting new
// requests, given the counters accumulated so far.
type StopCondition func(c *Counters) bool

// MaxDuration stops the run once the elapsed wall-clock time reaches d.
func MaxDuration(d time.Duration) StopCondition {
	return func(c *Counters) bool { return c.Elapsed() >= d }
}

// MaxOperations stops the run once n total operations (successes and
// aborts) have been observed.
func MaxOperations(n int64) StopCondition {
	return func(c *Counters) bool { return c.Total() >= n }
}

// MaxAborts stops the run once n transport-level failures have been
// observed.
func MaxAborts(n int64) StopCondition {
	return func(c *Counters) bool { return c.Aborts() >= n }
}

// MaxStatusCodeCount stops the run once n responses carrying the given
// status code have been observed.
func MaxStatusCodeCount(code int, n int64) StopCondition {
	return func(c *Counters) bool { return c.StatusCodeCount(code) >= n }
}
