// Package provider holds the upstream LLM clients the dispatcher invokes.
package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/draftsmith/genpipe/pkg/config"
)

// Generator produces text for a prompt against one upstream backend.
type Generator interface {
	// Name returns the configured provider name.
	Name() string
	// Generate sends the prompt upstream. Blocking; honors ctx deadlines.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Build constructs a Generator for every enabled provider in the config.
// Providers that fail to initialize are logged and left out rather than
// failing startup; the registry will simply never order them.
func Build(ctx context.Context, providers []config.ProviderConfig, logger *zap.Logger) map[string]Generator {
	out := make(map[string]Generator, len(providers))
	for _, p := range providers {
		if !p.Enabled {
			continue
		}
		g, err := newGenerator(ctx, p)
		if err != nil {
			logger.Warn("provider unavailable",
				zap.String("provider", p.Name),
				zap.Error(err))
			continue
		}
		out[p.Name] = g
	}
	return out
}

func newGenerator(ctx context.Context, p config.ProviderConfig) (Generator, error) {
	switch p.Type {
	case "gemini":
		return NewGemini(ctx, p)
	case "openai-compat":
		return NewOpenAICompat(p)
	case "static":
		return NewStatic(p), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", p.Type)
	}
}
