// ==============================================================================
// POSTGRES HELPERS - internal/repository/postgres/postgres.go
// ==============================================================================
package postgres

import (
	"context"
	"time"
)

// withTimeout bounds a store call with the repository's configured query
// timeout. A zero timeout leaves the caller's context untouched.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
