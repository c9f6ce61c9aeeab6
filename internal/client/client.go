// Package client defines the narrow transport boundary the driver issues
// requests through, keeping raw HTTP transport swappable and out of the
// core request-production packages' import graph.
package client

import (
	"context"

	"github.com/tigrawap/objload/internal/request"
)

// Client executes a single Request and returns the observed Response.
// Implementations must respect ctx cancellation.
type Client interface {
	Execute(ctx context.Context, req *request.Request) (*request.Response, error)
}
