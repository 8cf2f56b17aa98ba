package services

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// newLimiter builds the politeness limiter for a stage: one event per
// delay, no burst beyond the first. A zero or negative delay disables
// limiting.
func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// waitLimiter blocks until the limiter grants a slot. Nil limiters grant
// immediately.
func waitLimiter(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
