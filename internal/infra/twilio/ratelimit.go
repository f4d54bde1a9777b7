package twilio

import (
	"context"
	"fmt"

	"medication_reminder_bot/internal/domain/sms"

	"golang.org/x/time/rate"
)

// RateLimited spaces out sends so a sweep over many contacts stays under provider limits.
type RateLimited struct {
	next    sms.Gateway
	limiter *rate.Limiter
}

func NewRateLimited(next sms.Gateway, perSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *RateLimited) Send(ctx context.Context, to, from, body string) (*sms.DeliveryResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("sms rate limit wait: %w", err)
	}
	return r.next.Send(ctx, to, from, body)
}
