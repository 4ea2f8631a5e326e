package lively

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Sender is the part of Client that Batch needs.
type Sender interface {
	Send(ctx context.Context, payload any, room string, opts ...SendOption) error
}

// Batch sends payloads to room in order, pacing them with limiter (nil means
// no pacing). It stops at the first failure and returns how many were sent.
func Batch(ctx context.Context, s Sender, room string, payloads []any, limiter *rate.Limiter, opts ...SendOption) (int, error) {
	sent := 0
	for i, p := range payloads {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return sent, fmt.Errorf("rate limiter: %w", err)
			}
		} else if err := ctx.Err(); err != nil {
			return sent, err
		}

		if err := s.Send(ctx, p, room, opts...); err != nil {
			return sent, fmt.Errorf("payload %d: %w", i, err)
		}
		sent++
	}
	return sent, nil
}

// NewLimiter builds a limiter allowing perSecond sends with the given burst.
// perSecond <= 0 disables pacing.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
