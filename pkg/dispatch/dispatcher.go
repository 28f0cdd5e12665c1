// Package dispatch walks the candidate provider list with bounded
// exponential-backoff retries, recording outcomes in the registry.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/draftsmith/genpipe/pkg/config"
	"github.com/draftsmith/genpipe/pkg/logging"
	"github.com/draftsmith/genpipe/pkg/models"
	"github.com/draftsmith/genpipe/pkg/registry"
)

var (
	// ErrAllProvidersExhausted is terminal for the request; the caller
	// turns it into a deterministic fallback.
	ErrAllProvidersExhausted = errors.New("all providers exhausted")

	// ErrEmptyResponse marks a blank provider response, treated the same
	// as a transport error.
	ErrEmptyResponse = errors.New("provider returned empty response")
)

const errSnippetLen = 200

// InvokeFunc calls a single provider and returns the generated text.
type InvokeFunc func(ctx context.Context, provider config.ProviderConfig) (string, error)

/// Result is a successful dispatch: the text, the provider that produced it,
// and a trace of every attempt made along the way.
type Result struct {
	Provider string
	Content  string
	Trace    []models.TraceEntry
}

// Dispatcher tries providers in order with per-provider retries.
type Dispatcher struct {
	registry    *registry.Registry
	maxRetries  int
	baseBackoff time.Duration
	logger      *zap.Logger
}

// New creates a Dispatcher. Zero retry/backoff values take the defaults
// (3 attempts, 1s base delay).
func New(reg *registry.Registry, cfg config.DispatchConfig, logger *zap.Logger) *Dispatcher {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoff := cfg.BaseBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Dispatcher{
		registry:    reg,
		maxRetries:  maxRetries,
		baseBackoff: backoff,
		logger:      logger,
	}
}

// Dispatch attempts each candidate in order. Rate-limited and unhealthy
// providers are skipped with a trace entry; transient failures are retried
// with doubling backoff. Backoff sleeps respect ctx and never hold a lock.
// On exhaustion every attempted provider gets a failure outcome and the
// trace so far is returned alongside ErrAllProvidersExhausted.
func (d *Dispatcher) Dispatch(ctx context.Context, candidates []config.ProviderConfig, invoke InvokeFunc) (*Result, error) {
	var trace []models.TraceEntry
	var attempted []string

	for _, p := range candidates {
		if d.registry.Unhealthy(p.Name) {
			d.logger.Info("skipped: unhealthy", zap.String("provider", p.Name))
			trace = append(trace, models.TraceEntry{Provider: p.Name, Status: models.StatusSkipped, Error: "unhealthy"})
			continue
		}
		if !d.registry.CheckAndReserve(p) {
			d.logger.Info("skipped: rate-limited", zap.String("provider", p.Name))
			trace = append(trace, models.TraceEntry{Provider: p.Name, Status: models.StatusSkipped, Error: "rate-limited"})
			continue
		}

		attempted = append(attempted, p.Name)
		backoff := d.baseBackoff

		for attempt := 0; attempt < d.maxRetries; attempt++ {
			start := time.Now()
			content, err := invoke(ctx, p)
			elapsed := time.Since(start).Milliseconds()

			if err == nil && strings.TrimSpace(content) == "" {
				err = ErrEmptyResponse
			}

			if err == nil {
				trace = append(trace, models.TraceEntry{Provider: p.Name, Status: models.StatusSuccess, DurationMs: elapsed})
				d.registry.RecordOutcome(p.Name, true)
				return &Result{Provider: p.Name, Content: content, Trace: trace}, nil
			}

			d.logger.Warn("provider attempt failed",
				zap.String("provider", p.Name),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			trace = append(trace, models.TraceEntry{
				Provider:   p.Name,
				Status:     models.StatusError,
				DurationMs: elapsed,
				Error:      logging.Truncate(err.Error(), errSnippetLen),
			})

			if ctx.Err() != nil {
				return &Result{Trace: trace}, ctx.Err()
			}

			if attempt < d.maxRetries-1 {
				select {
				case <-ctx.Done():
					return &Result{Trace: trace}, ctx.Err()
				case <-time.After(backoff):
					backoff *= 2
				}
			}
		}
	}

	for _, name := range attempted {
		d.registry.RecordOutcome(name, false)
	}
	return &Result{Trace: trace}, ErrAllProvidersExhausted
}
