// Package bucket holds the rate-budget stores keyed by opaque budget keys.
package bucket

import (
	"context"
	"time"
)

// Store answers whether one more operation fits inside the budget for key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
