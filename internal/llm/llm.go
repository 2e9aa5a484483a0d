// Package llm defines the text-completion contract the engine consumes.
// The concrete implementation lives in pkg/anthropic; tests substitute
// fakes.
package llm

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/greenatlas/compliance-assistant/internal/model"
)

// Completer issues a single completion request and returns the model's
// text. Transport and model failures come back as errors; callers decide
// how to degrade.
type Completer interface {
	Complete(ctx context.Context, system string, msgs []model.Message) (string, error)
}

// RateLimited wraps a Completer with a token-bucket limiter so bursts of
// chat requests do not trip upstream API limits. Additive only: it changes
// timing, never results.
type RateLimited struct {
	inner   Completer
	limiter *rate.Limiter
}

// NewRateLimited wraps inner, allowing reqsPerSec sustained requests with a
// burst of one.
func NewRateLimited(inner Completer, reqsPerSec float64) *RateLimited {
	if reqsPerSec <= 0 {
		reqsPerSec = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(reqsPerSec), 1),
	}
}

func (r *RateLimited) Complete(ctx context.Context, system string, msgs []model.Message) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.inner.Complete(ctx, system, msgs)
}
