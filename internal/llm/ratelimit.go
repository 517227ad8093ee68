package llm

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// RateLimited spaces out calls to the wrapped client.
type RateLimited struct {
	next    LLMClient
	limiter *rate.Limiter
}

func NewRateLimited(next LLMClient, rps float64) *RateLimited {
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (r *RateLimited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.next.Generate(ctx, prompt)
}

// Close closes the wrapped client if it holds resources.
func (r *RateLimited) Close() error {
	if c, ok := r.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
