package domain

import (
	"context"
	"time"
)

// RateLimitDecision is the outcome of one fixed-window check.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter throttles the unauthenticated verification endpoint. A limit
// of zero or less means unlimited.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}
