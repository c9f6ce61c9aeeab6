// Package eventbus implements a small typed publish/subscribe dispatcher
// used to fan completed Responses out to interested listeners (statistics
// collection, multipart session bookkeeping, object population
// bookkeeping) without coupling
// the driver loop directly to any of them.
package eventbus

import (
	"sync"

	"github.com/tigrawap/objload/internal/request"
)

// Subscriber receives the request/response pair after a request has
// completed.
type Subscriber func(req *request.Request, resp *request.Response)

// ExceptionHandler is invoked when a Subscriber panics, before the panic
// is re-raised. The re-raised panic is what aborts the run, mirroring
// the fail-fast semantics expected of this kind of dispatcher.
type ExceptionHandler func(subscriberErr any)

// Bus is a synchronous, many-subscriber dispatcher. Post blocks until
// every subscriber has run, and any panic raised by a subscriber is
// caught, reported to the configured ExceptionHandler, and re-raised to
// the caller of Post so the failure isn't silently swallowed.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	onError     ExceptionHandler
}

// New constructs a Bus. onError may be nil, in which case subscriber
// panics simply propagate out of Post.
func New(onError ExceptionHandler) *Bus {
	return &Bus{onError: onError}
}

// Subscribe registers sub to receive every future Post.
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Post dispatches the req/resp pair to every subscriber in registration
// order. If a subscriber panics, the panic is reported to the
// configured ExceptionHandler (if any) before being re-raised.
func (b *Bus) Post(req *request.Request, resp *request.Response) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, sub := range subs {
		b.dispatch(sub, req, resp)
	}
}

func (b *Bus) dispatch(sub Subscriber, req *request.Request, resp *request.Response) {
	defer func() {
		if r := recover(); r != nil {
			if b.onError != nil {
				b.onError(r)
			}
			panic(r)
		}
	}()
	sub(req, resp)
}
