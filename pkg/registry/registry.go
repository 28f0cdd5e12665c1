// Package registry tracks per-provider health and rate-limit windows and
// produces the priority-ordered candidate list for dispatch.
package registry

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/draftsmith/genpipe/pkg/config"
	"github.com/draftsmith/genpipe/pkg/models"
	"github.com/draftsmith/genpipe/pkg/snapshot"
)

const (
	hourlyWindow = time.Hour
	dailyWindow  = 24 * time.Hour

	// DefaultFailureCeiling excludes a provider from candidate ordering
	// until successes bring its failure streak back under the ceiling.
	DefaultFailureCeiling uint = 5
)

type providerHealth struct {
	consecutiveFailures uint
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
}

type rateWindow struct {
	hourly      []time.Time
	dailyCount  int
	windowStart time.Time
}

// Registry owns provider health and rate windows. All methods are safe for
// concurrent use; one mutex guards both maps.
type Registry struct {
	mu      sync.Mutex
	ceiling uint
	logger  *zap.Logger
	health  map[string]*providerHealth
	windows map[string]*rateWindow
	now     func() time.Time
}

// New creates an empty Registry. A zero ceiling falls back to the default.
func New(ceiling uint, logger *zap.Logger) *Registry {
	if ceiling == 0 {
		ceiling = DefaultFailureCeiling
	}
	return &Registry{
		ceiling: ceiling,
		logger:  logger,
		health:  make(map[string]*providerHealth),
		windows: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

func (r *Registry) healthFor(provider string) *providerHealth {
	h, ok := r.health[provider]
	if !ok {
		h = &providerHealth{}
		r.health[provider] = h
	}
	return h
}

// RecordOutcome updates the failure streak after a dispatch attempt.
// Successes decrement the streak toward zero rather than clearing it, so one
// lucky response does not instantly rehabilitate a flapping provider.
func (r *Registry) RecordOutcome(provider string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.healthFor(provider)
	if success {
		if h.consecutiveFailures > 0 {
			h.consecutiveFailures--
		}
		h.lastSuccessAt = r.now()
		return
	}
	h.consecutiveFailures++
	h.lastFailureAt = r.now()
}

// CheckAndReserve atomically checks the provider's rate windows and, when
// allowed, records the attempt. Returns false when the hourly or daily cap
// would be exceeded; a zero cap means unlimited.
func (r *Registry) CheckAndReserve(p config.ProviderConfig) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	w, ok := r.windows[p.Name]
	if !ok {
		w = &rateWindow{windowStart: now}
		r.windows[p.Name] = w
	}

	// Prune attempts older than one hour.
	cutoff := now.Add(-hourlyWindow)
	kept := w.hourly[:0]
	for _, ts := range w.hourly {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.hourly = kept

	if now.Sub(w.windowStart) > dailyWindow {
		w.dailyCount = 0
		w.windowStart = now
	}

	if p.RateLimitHourly > 0 && len(w.hourly) >= p.RateLimitHourly {
		r.logger.Debug("hourly rate limit reached",
			zap.String("provider", p.Name),
			zap.Int("cap", p.RateLimitHourly))
		return false
	}
	if p.RateLimitDaily > 0 && w.dailyCount >= p.RateLimitDaily {
		r.logger.Debug("daily rate limit reached",
			zap.String("provider", p.Name),
			zap.Int("cap", p.RateLimitDaily))
		return false
	}

	w.hourly = append(w.hourly, now)
	w.dailyCount++
	return true
}

// Unhealthy reports whether the failure streak has hit the ceiling.
func (r *Registry) Unhealthy(provider string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.health[provider] != nil && r.health[provider].consecutiveFailures >= r.ceiling
}

func hasCredentials(p config.ProviderConfig) bool {
	// The static provider is local and needs no key.
	return p.APIKey != "" || p.Type == "static"
}

// CandidateOrder filters to usable providers and orders them by failure
// streak ascending, ties broken by configured static priority.
func (r *Registry) CandidateOrder(providers []config.ProviderConfig) []config.ProviderConfig {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := make([]config.ProviderConfig, 0, len(providers))
	failures := make(map[string]uint, len(providers))
	for _, p := range providers {
		if !p.Enabled || !hasCredentials(p) {
			continue
		}
		var f uint
		if h, ok := r.health[p.Name]; ok {
			f = h.consecutiveFailures
		}
		if f >= r.ceiling {
			r.logger.Debug("excluding unhealthy provider",
				zap.String("provider", p.Name),
				zap.Uint("failures", f))
			continue
		}
		failures[p.Name] = f
		candidates = append(candidates, p)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		fi, fj := failures[candidates[i].Name], failures[candidates[j].Name]
		if fi != fj {
			return fi < fj
		}
		return candidates[i].Priority < candidates[j].Priority
	})
	return candidates
}

// Health returns a point-in-time snapshot of every tracked provider.
func (r *Registry) Health() []models.ProviderHealth {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.ProviderHealth, 0, len(r.health))
	for name, h := range r.health {
		ph := models.ProviderHealth{
			Provider:            name,
			ConsecutiveFailures: h.consecutiveFailures,
			LastSuccessAt:       h.lastSuccessAt,
			LastFailureAt:       h.lastFailureAt,
		}
		if w, ok := r.windows[name]; ok {
			ph.HourlyUsed = len(w.hourly)
			ph.DailyUsed = w.dailyCount
		}
		out = append(out, ph)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// SaveSnapshot writes provider health to a snapshot file. State is copied
// under the lock by Health; the write happens outside it.
func (r *Registry) SaveSnapshot(path string) error {
	return snapshot.Save(path, "provider_health/v1", r.Health())
}

// LoadSnapshot restores failure streaks and timestamps from a snapshot.
// Rate windows are deliberately not restored; stale timestamps would only
// loosen the caps they are meant to enforce.
func (r *Registry) LoadSnapshot(path string) error {
	entries, err := snapshot.Load[models.ProviderHealth](path, "provider_health/v1", r.logger)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.health[e.Provider] = &providerHealth{
			consecutiveFailures: e.ConsecutiveFailures,
			lastSuccessAt:       e.LastSuccessAt,
			lastFailureAt:       e.LastFailureAt,
		}
	}
	return nil
}
