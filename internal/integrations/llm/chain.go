package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	maxRetriesCap  = 3
	defaultBackoff = 250 * time.Millisecond
)

// Chain tries providers in order, retrying each a bounded number of times,
// and returns the first successful response.
type Chain struct {
	providers  []Provider
	maxRetries int
	backoff    time.Duration
	limiter    *rate.Limiter
}

type ChainOption func(*Chain)

// WithMaxRetries sets retries per provider. Values above 3 are clamped.
func WithMaxRetries(n int) ChainOption {
	return func(c *Chain) {
		if n < 0 {
			n = 0
		}
		if n > maxRetriesCap {
			n = maxRetriesCap
		}
		c.maxRetries = n
	}
}

func WithBackoff(d time.Duration) ChainOption {
	return func(c *Chain) { c.backoff = d }
}

// WithRateLimit caps outbound calls across all providers. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) ChainOption {
	return func(c *Chain) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewChain(providers []Provider, opts ...ChainOption) *Chain {
	c := &Chain{
		providers:  providers,
		maxRetries: 2,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Len() int { return len(c.providers) }

func (c *Chain) Generate(ctx context.Context, req Request) (Response, error) {
	if len(c.providers) == 0 {
		return Response{}, ErrNoProvider
	}

	var errs []error
	for _, p := range c.providers {
		for attempt := 0; attempt <= c.maxRetries; attempt++ {
			if attempt > 0 && c.backoff > 0 {
				select {
				case <-ctx.Done():
					return Response{}, errors.Join(append(errs, ctx.Err())...)
				case <-time.After(time.Duration(attempt) * c.backoff):
				}
			}
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return Response{}, errors.Join(append(errs, err)...)
				}
			}

			resp, err := p.Generate(ctx, req)
			if err == nil {
				if resp.Provider == "" {
					resp.Provider = p.Name()
				}
				return resp, nil
			}
			log.WithFields(log.Fields{
				"provider": p.Name(),
				"attempt":  attempt + 1,
			}).Warnf("llm call failed: %v", err)
			errs = append(errs, fmt.Errorf("%s attempt %d: %w", p.Name(), attempt+1, err))
			if ctx.Err() != nil {
				return Response{}, errors.Join(errs...)
			}
		}
	}
	return Response{}, errors.Join(errs...)
}
