package mail

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"news_portal/internal/domain"
)

type Sender interface {
	Send(ctx context.Context, msg domain.Email) error
}

// Throttled paces sends through a shared token bucket so that concurrent
// fan-outs stay under the relay's rate limit.
type Throttled struct {
	next    Sender
	limiter *rate.Limiter
}

// NewThrottled returns next unchanged when perSecond is not positive.
func NewThrottled(next Sender, perSecond float64) Sender {
	if perSecond <= 0 {
		return next
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (t *Throttled) Send(ctx context.Context, msg domain.Email) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}
	return t.next.Send(ctx, msg)
}
