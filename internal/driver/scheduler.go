package driver

import (
	"context"
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"sync"
	"time"
)

// Scheduler paces request emission. Wait blocks until the next request
// is admitted, or returns false if ctx was cancelled first.
type Scheduler interface {
	Wait(ctx context.Context) bool
}

// ConcurrencyScheduler admits every request immediately; pacing is left
// entirely to the worker pool's concurrency cap. This is the scheduler
// used for a fixed-concurrency run with no target rate.
type ConcurrencyScheduler struct{}

// Wait implements Scheduler.
func (ConcurrencyScheduler) Wait(ctx context.Context) bool {
	return ctx.Err() == nil
}

// ConstantRateScheduler admits requests at a fixed rate. It tracks how
// many admissions should have happened by now (wall-clock / interval)
// and catches up in a burst rather than drifting behind.
type ConstantRateScheduler struct {
	interval  time.Duration
	startedAt time.Time
	mu        sync.Mutex
	emitted   int64
}

// NewConstantRateScheduler admits ratePerSecond requests per second.
// Panics if ratePerSecond <= 0.
func NewConstantRateScheduler(ratePerSecond float64) *ConstantRateScheduler {
	if ratePerSecond <= 0 {
		panic("driver: constant rate scheduler requires ratePerSecond > 0")
	}
	return &ConstantRateScheduler{
		interval:  time.Duration(float64(time.Second) / ratePerSecond),
		startedAt: time.Now(),
	}
}

// Wait implements Scheduler.
func (s *ConstantRateScheduler) Wait(ctx context.Context) bool {
	for {
		s.mu.Lock()
		shouldHaveEmitted := int64(time.Since(s.startedAt) / s.interval)
		if shouldHaveEmitted > s.emitted {
			s.emitted++
			s.mu.Unlock()
			return true
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Millisecond):
		}
	}
}

// PoissonScheduler admits requests with exponentially-distributed
// inter-arrival times, approximating a Poisson arrival process at a
// given mean rate.
type PoissonScheduler struct {
	meanIntervalNs float64
	rng            *mrand.Rand
	mu             sync.Mutex
	nextAt         time.Time
	started        bool
}

// NewPoissonScheduler admits, on average, ratePerSecond requests per
// second, with exponentially-distributed gaps between admissions.
// Panics if ratePerSecond <= 0.
func NewPoissonScheduler(ratePerSecond float64) *PoissonScheduler {
	if ratePerSecond <= 0 {
		panic("driver: poisson scheduler requires ratePerSecond > 0")
	}
	return &PoissonScheduler{
		meanIntervalNs: float64(time.Second) / ratePerSecond,
		rng:            mrand.New(mrand.NewPCG(seedUint64(), seedUint64())),
	}
}

// Wait implements Scheduler.
func (s *PoissonScheduler) Wait(ctx context.Context) bool {
	s.mu.Lock()
	if !s.started {
		s.nextAt = time.Now()
		s.started = true
	}
	gapNs := s.rng.ExpFloat64() * s.meanIntervalNs
	s.nextAt = s.nextAt.Add(time.Duration(gapNs))
	target := s.nextAt
	s.mu.Unlock()

	d := time.Until(target)
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func seedUint64() uint64 {
	n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(^uint64(0)))
	if err != nil {
		return uint64(time.Now().UnixNano())
	}
	return n.Uint64()
}
