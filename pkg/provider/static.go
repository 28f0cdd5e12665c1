package provider

import (
	"context"
	"fmt"

	"github.com/draftsmith/genpipe/pkg/config"
	"github.com/draftsmith/genpipe/pkg/logging"
)

// Static is a deterministic local generator used for dry runs and tests.
// It never fails and never calls the network.
type Static struct {
	name string
}

// NewStatic creates a Static generator.
func NewStatic(p config.ProviderConfig) *Static {
	return &Static{name: p.Name}
}

// Name implements Generator.
func (s *Static) Name() string { return s.name }

// Generate implements Generator. The output echoes a prompt excerpt so
// downstream formatting and caching behave like the real thing.
func (s *Static) Generate(_ context.Context, prompt string) (string, error) {
	return fmt.Sprintf(
		"Generated Draft (dry run)\n\nProvider: %s\n\n%s\n",
		s.name, logging.Truncate(prompt, 500),
	), nil
}
