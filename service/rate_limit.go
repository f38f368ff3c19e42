package service

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedGenerator waits on a shared limiter before each call to the
// wrapped generator.
type RateLimitedGenerator struct {
	next    Generator
	limiter *rate.Limiter
}

// NewRateLimitedGenerator allows rps calls per second with the given burst.
// A non-positive rps returns next unchanged.
func NewRateLimitedGenerator(next Generator, rps float64, burst int) Generator {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedGenerator{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (g *RateLimitedGenerator) Generate(ctx context.Context, systemInstructions, userContent string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return g.next.Generate(ctx, systemInstructions, userContent)
}
