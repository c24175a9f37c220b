// Package ratelimit enforces the per (principal, transport) update budget
// protecting the broadcast path from runaway senders.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"caretrack/internal/ratelimit/store/bucket"
)

const (
	// DefaultLimit and DefaultWindow give one accepted update per 500ms,
	// which is the 2 updates/second budget without allowing a 2-burst.
	DefaultLimit  = 1
	DefaultWindow = 500 * time.Millisecond
)

// Limiter answers whether a (principal, transport) pair may submit one more
// update right now.
type Limiter struct {
	store  bucket.Store
	limit  int
	window time.Duration
	logger *slog.Logger
}

type Option func(*Limiter)

func WithLimit(limit int, window time.Duration) Option {
	return func(l *Limiter) {
		l.limit = limit
		l.window = window
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func New(store bucket.Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		limit:  DefaultLimit,
		window: DefaultWindow,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow consumes one token from the pair's budget. A failing bucket store
// fails open with a warning: a limiter outage must not halt position flow.
func (l *Limiter) Allow(ctx context.Context, principalID, transportID int64) bool {
	key := fmt.Sprintf("%d:%d", principalID, transportID)
	allowed, err := l.store.Allow(ctx, key, l.limit, l.window)
	if err != nil {
		l.logger.WarnContext(ctx, "rate limit store unavailable, failing open",
			"error", err,
			"principal_id", principalID,
			"transport_id", transportID,
		)
		return true
	}
	return allowed
}
