package registry

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/draftsmith/genpipe/pkg/config"
)

func newTestRegistry() *Registry {
	return New(0, zap.NewNop())
}

func TestRecordOutcomeFloorsAtZero(t *testing.T) {
	r := newTestRegistry()

	r.RecordOutcome("gemini", true)
	r.RecordOutcome("gemini", true)

	h := r.Health()
	if len(h) != 1 || h[0].ConsecutiveFailures != 0 {
		t.Fatalf("expected zero failures, got %+v", h)
	}

	r.RecordOutcome("gemini", false)
	r.RecordOutcome("gemini", false)
	r.RecordOutcome("gemini", true)

	h = r.Health()
	if h[0].ConsecutiveFailures != 1 {
		t.Errorf("expected 1 failure after two failures and one success, got %d", h[0].ConsecutiveFailures)
	}
}

func TestCheckAndReserveHourlyCap(t *testing.T) {
	r := newTestRegistry()
	p := config.ProviderConfig{Name: "gemini", RateLimitHourly: 3}

	for i := 0; i < 3; i++ {
		if !r.CheckAndReserve(p) {
			t.Fatalf("call %d should have been allowed", i+1)
		}
	}
	if r.CheckAndReserve(p) {
		t.Fatal("4th call within the hour should have been denied")
	}
}

func TestCheckAndReserveWindowRollsOver(t *testing.T) {
	r := newTestRegistry()
	p := config.ProviderConfig{Name: "gemini", RateLimitHourly: 1}

	base := time.Now()
	r.now = func() time.Time { return base }

	if !r.CheckAndReserve(p) {
		t.Fatal("first call should be allowed")
	}
	if r.CheckAndReserve(p) {
		t.Fatal("second call should be denied")
	}

	r.now = func() time.Time { return base.Add(61 * time.Minute) }
	if !r.CheckAndReserve(p) {
		t.Fatal("call after window rollover should be allowed")
	}
}

func TestCheckAndReserveDailyReset(t *testing.T) {
	r := newTestRegistry()
	p := config.ProviderConfig{Name: "gemini", RateLimitDaily: 2}

	base := time.Now()
	r.now = func() time.Time { return base }

	r.CheckAndReserve(p)
	r.CheckAndReserve(p)
	if r.CheckAndReserve(p) {
		t.Fatal("3rd call should exceed the daily cap")
	}

	r.now = func() time.Time { return base.Add(25 * time.Hour) }
	if !r.CheckAndReserve(p) {
		t.Fatal("call after daily reset should be allowed")
	}
}

func TestCandidateOrder(t *testing.T) {
	r := newTestRegistry()
	providers := []config.ProviderConfig{
		{Name: "a", Type: "gemini", Enabled: true, APIKey: "k", Priority: 2},
		{Name: "b", Type: "openai-compat", Enabled: true, APIKey: "k", Priority: 1},
		{Name: "disabled", Type: "gemini", Enabled: false, APIKey: "k"},
		{Name: "no-key", Type: "gemini", Enabled: true},
	}

	order := r.CandidateOrder(providers)
	if len(order) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(order))
	}
	if order[0].Name != "b" {
		t.Errorf("expected priority 1 provider first, got %s", order[0].Name)
	}

	// Failures push a provider down the order.
	r.RecordOutcome("b", false)
	order = r.CandidateOrder(providers)
	if order[0].Name != "a" {
		t.Errorf("expected healthy provider first, got %s", order[0].Name)
	}

	// Hitting the ceiling excludes it entirely.
	for i := 0; i < int(DefaultFailureCeiling); i++ {
		r.RecordOutcome("a", false)
	}
	order = r.CandidateOrder(providers)
	if len(order) != 1 || order[0].Name != "b" {
		t.Errorf("expected only b after a hit the ceiling, got %+v", order)
	}

	// A success brings it back under the ceiling.
	r.RecordOutcome("a", true)
	order = r.CandidateOrder(providers)
	if len(order) != 2 {
		t.Errorf("expected a to be eligible again, got %+v", order)
	}
}

func TestCheckAndReserveConcurrentSingleSlot(t *testing.T) {
	r := newTestRegistry()
	p := config.ProviderConfig{Name: "gemini", RateLimitHourly: 1}

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.CheckAndReserve(p) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 1 {
		t.Errorf("expected exactly one caller to win the last slot, got %d", allowed)
	}
}
