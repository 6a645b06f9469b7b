package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"iprisk-backend/internal/retry"
	"iprisk-backend/internal/shared/metrics"
	"iprisk-backend/internal/shared/telemetry"
	"iprisk-backend/internal/shared/util"
)

// Chain tries providers in order. Each provider call is retried on its own
// before the chain moves to the next provider.
type Chain struct {
	Providers []Generator
	Retry     retry.Options
	// OnFallback, when set, is called after a provider is given up on.
	OnFallback func(from Generator, err error)
}

// NewChain builds a chain over providers, skipping nil entries.
func NewChain(opts retry.Options, providers ...Generator) *Chain {
	c := &Chain{Retry: opts}
	for _, p := range providers {
		if p != nil {
			c.Providers = append(c.Providers, p)
		}
	}
	return c
}

// Names lists the configured provider names in order.
func (c *Chain) Names() []string {
	out := make([]string, 0, len(c.Providers))
	for _, p := range c.Providers {
		out = append(out, p.Name())
	}
	return out
}

// Run calls call once per provider until one succeeds. Permanent errors skip
// straight to the next provider.
func (c *Chain) Run(ctx context.Context, call func(ctx context.Context, g Generator) error) error {
	if c == nil || len(c.Providers) == 0 {
		return ErrNoProviders
	}
	var errs []error
	for i, provider := range c.Providers {
		opts := c.Retry
		name := provider.Name()
		opts.OnRetry = func(attempt int, delay time.Duration, err error) {
			metrics.IncExternalRetry(name)
			telemetry.Warn("llm.retry", map[string]any{
				"request_id": telemetry.RequestIDFromContext(ctx),
				"provider":   name,
				"attempt":    attempt,
				"delay_ms":   delay.Milliseconds(),
				"error":      util.SanitizeMessage(err.Error()),
			})
		}
		_, err := retry.Do(ctx, opts, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, call(ctx, provider)
		})
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
		if i < len(c.Providers)-1 {
			metrics.IncProviderFallback(name)
			telemetry.Warn("llm.fallback", map[string]any{
				"request_id": telemetry.RequestIDFromContext(ctx),
				"from":       name,
				"to":         c.Providers[i+1].Name(),
				"error":      util.SanitizeMessage(err.Error()),
			})
		}
		if c.OnFallback != nil {
			c.OnFallback(provider, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}
