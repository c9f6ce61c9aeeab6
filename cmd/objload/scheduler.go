package main

import (
	"fmt"

	"github.com/tigrawap/objload/internal/driver"
)

// newScheduler selects a driver.Scheduler from the -distribution flag.
// "concurrency" (the default) paces purely by the worker pool's
// concurrency cap; "constant" and "poisson" both require rate > 0.
func newScheduler(distribution string, rate float64) (driver.Scheduler, error) {
	switch distribution {
	case "concurrency", "":
		return driver.ConcurrencyScheduler{}, nil
	case "constant":
		if rate <= 0 {
			return nil, fmt.Errorf("-rate must be > 0 for the constant distribution")
		}
		return driver.NewConstantRateScheduler(rate), nil
	case "poisson":
		if rate <= 0 {
			return nil, fmt.Errorf("-rate must be > 0 for the poisson distribution")
		}
		return driver.NewPoissonScheduler(rate), nil
	default:
		return nil, fmt.Errorf("unknown -distribution %q, want concurrency/constant/poisson", distribution)
	}
}
