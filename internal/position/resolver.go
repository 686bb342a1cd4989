// Package position resolves device coordinates from an injected
// positioning source, substituting a fixed default pair when the
// source fails or times out.
package position

import (
	"context"
	"time"

	"github.com/mesh-intelligence/aegis/pkg/types"
)

// Resolver applies a bounded timeout over a PositionSource. A nil
// source always yields the default pair.
type Resolver struct {
	source  types.PositionSource
	timeout time.Duration
}

// NewResolver creates a resolver over src with the given timeout.
func NewResolver(src types.PositionSource, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = types.DefaultPositionTimeout
	}
	return &Resolver{source: src, timeout: timeout}
}

// Resolve queries the source within the timeout. On any error, denial,
// or timeout it returns the default coordinate pair and fromSource
// false; the condition is a status flag, never a failure.
func (r *Resolver) Resolve(ctx context.Context) (pos types.Position, fromSource bool) {
	if r.source == nil {
		return types.DefaultPosition(), false
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pos, err := r.source.Current(ctx)
	if err != nil {
		return types.DefaultPosition(), false
	}
	return pos, true
}
