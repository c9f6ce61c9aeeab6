// Package supplier provides the small set of value-producing building
// blocks used throughout the workload generator: constant, cycling,
// ranged-integer, and weighted-random choices. Suppliers are tagged
// structs rather than closures so that later suppliers can be composed
// and introspected without capturing hidden mutable state.
package supplier

import (
	"sort"
	"sync"

	"github.com/tigrawap/objload/internal/ogerrors"
)

// Context is the per-request mutable metadata map threaded through
// supplier evaluation, letting later suppliers observe earlier side
// effects (e.g. an object-name supplier reading a container name written
// moments earlier).
type Context = map[string]string

// Supplier produces a value of type T each time Get is called.
type Supplier[T any] interface {
	Get(ctx Context) T
}

// Constant always returns the same value.
type Constant[T any] struct {
	Value T
}

// NewConstant constructs a Constant supplier.
func NewConstant[T any](v T) *Constant[T] { return &Constant[T]{Value: v} }

// Get returns the constant value.
func (c *Constant[T]) Get(Context) T { return c.Value }

// Cycle rotates deterministically through a fixed list, wrapping at the end.
type Cycle[T any] struct {
	mu     sync.Mutex
	values []T
	next   int
}

// NewCycle constructs a Cycle supplier over values. Panics if values is empty.
func NewCycle[T any](values []T) *Cycle[T] {
	if len(values) == 0 {
		panic(ogerrors.NewConfigurationError("cycle supplier requires at least one value"))
	}
	return &Cycle[T]{values: append([]T(nil), values...)}
}

// Get returns the next value in rotation.
func (c *Cycle[T]) Get(Context) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.values[c.next]
	c.next = (c.next + 1) % len(c.values)
	return v
}

// RangedMode selects how Ranged walks its interval.
type RangedMode int

const (
	// RangedCycle walks [min, max] deterministically, wrapping at max.
	RangedCycle RangedMode = iota
	// RangedRandom draws uniformly from [min, max] on each call.
	RangedRandom
)

// Rng is the minimal randomness surface Ranged and WeightedRandom need,
// satisfied by *rand.Rand; accepting an interface lets callers inject a
// seeded source for determinism in tests.
type Rng interface {
	Int63n(n int64) int64
}

// Ranged produces integers in the closed interval [Min, Max].
type Ranged struct {
	mu   sync.Mutex
	Min  int64
	Max  int64
	Mode RangedMode
	Rand Rng
	next int64
}

// NewRanged constructs a Ranged supplier. Panics if min > max.
func NewRanged(min, max int64, mode RangedMode, rng Rng) *Ranged {
	if min > max {
		panic(ogerrors.NewConfigurationError("ranged supplier requires min <= max"))
	}
	return &Ranged{Min: min, Max: max, Mode: mode, Rand: rng, next: min}
}

// Get returns the next integer in [Min, Max] per the configured mode.
func (r *Ranged) Get(Context) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Min == r.Max {
		return r.Min
	}
	switch r.Mode {
	case RangedRandom:
		return r.Min + r.Rand.Int63n(r.Max-r.Min+1)
	default: // RangedCycle
		v := r.next
		r.next++
		if r.next > r.Max {
			r.next = r.Min
		}
		return v
	}
}

// WeightedChoice pairs a value with its relative weight.
type WeightedChoice[T any] struct {
	Value  T
	Weight float64
}

// WeightedRandom selects among a set of values by cumulative weight,
// using binary search over the cumulative-weight prefix sums.
type WeightedRandom[T any] struct {
	mu     sync.Mutex
	values []T
	cum    []float64
	total  float64
	rand   Rng
}

// NewWeightedRandom constructs a WeightedRandom supplier. Panics if the
// weights do not sum to a positive value.
func NewWeightedRandom[T any](choices []WeightedChoice[T], rng Rng) *WeightedRandom[T] {
	values := make([]T, 0, len(choices))
	cum := make([]float64, 0, len(choices))
	var total float64
	for _, c := range choices {
		if c.Weight <= 0 {
			continue
		}
		total += c.Weight
		values = append(values, c.Value)
		cum = append(cum, total)
	}
	if total <= 0 {
		panic(ogerrors.NewConfigurationError("weighted random supplier requires sum(weights) > 0"))
	}
	return &WeightedRandom[T]{values: values, cum: cum, total: total, rand: rng}
}

// Get selects a value according to the configured weights.
func (w *WeightedRandom[T]) Get(Context) T {
	w.mu.Lock()
	r := w.rand
	w.mu.Unlock()
	// scale int64 draw from [0, 1<<53) into [0, total)
	roll := float64(r.Int63n(1<<53)) / float64(int64(1)<<53) * w.total
	i := sort.SearchFloat64s(w.cum, roll)
	if i >= len(w.values) {
		i = len(w.values) - 1
	}
	return w.values[i]
}

// Field pairs a context key with a function that produces its string
// value. It has no methods of its own; evaluating Get and storing the
// result under Key is up to the code that holds the Field.
type Field struct {
	Key    string
	Get    func(ctx Context) string
}
