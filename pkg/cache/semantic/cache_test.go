package semantic

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/draftsmith/genpipe/pkg/config"
)

func testConfig() config.SemanticConfig {
	return config.SemanticConfig{
		Enabled:             true,
		TTL:                 24 * time.Hour,
		MaxEntries:          100,
		SimilarityThreshold: 0.85,
	}
}

func TestGetExactPrompt(t *testing.T) {
	c := New(testConfig(), zap.NewNop())
	c.Put("write a cover letter for software engineer role", "Dear hiring manager", 0.9, nil)

	got, ok := c.Get("write a cover letter for software engineer role", nil)
	require.True(t, ok)
	assert.Equal(t, "Dear hiring manager", got)
}

func TestGetParaphrasedPrompt(t *testing.T) {
	c := New(testConfig(), zap.NewNop())
	c.Put("write a cover letter for software engineer role", "Dear hiring manager", 0.9, nil)

	got, ok := c.Get("write a cover letter for the software engineer position", nil)
	require.True(t, ok)
	assert.Equal(t, "Dear hiring manager", got)
}

func TestGetUnrelatedPromptMisses(t *testing.T) {
	c := New(testConfig(), zap.NewNop())
	c.Put("write a cover letter for software engineer role", "Dear hiring manager", 0.9, nil)

	_, ok := c.Get("summarize quarterly revenue figures finance team", nil)
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Misses)
}

func TestPutBlankIsNoop(t *testing.T) {
	c := New(testConfig(), zap.NewNop())
	c.Put("   ", "response", 0.5, nil)
	c.Put("prompt", "  \n ", 0.5, nil)

	assert.Equal(t, 0, c.Stats().Entries)
}

func TestPutDuplicateIsNoop(t *testing.T) {
	c := New(testConfig(), zap.NewNop())
	c.Put("same prompt here", "same response", 0.5, nil)
	c.Put("same prompt here", "same response", 0.5, nil)

	assert.Equal(t, 1, c.Stats().Entries)
}

func TestCapacityEvictsLeastRecentlyAccessed(t *testing.T) {
	cfg := testConfig()
	cfg.MaxEntries = 2
	c := New(cfg, zap.NewNop())

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Put("write a cover letter for software engineer role", "first", 0.5, nil)
	clock = clock.Add(time.Minute)
	c.Put("summarize quarterly revenue figures finance team", "second", 0.5, nil)

	// Touch the older entry so the newer one becomes the eviction victim.
	clock = clock.Add(time.Minute)
	_, ok := c.Get("write a cover letter for software engineer role", nil)
	require.True(t, ok)

	clock = clock.Add(time.Minute)
	c.Put("please compose an application draft", "third", 0.5, nil)

	assert.Equal(t, 2, c.Stats().Entries)
	_, ok = c.Get("write a cover letter for software engineer role", nil)
	assert.True(t, ok, "recently accessed entry should survive eviction")
	_, ok = c.Get("summarize quarterly revenue figures finance team", nil)
	assert.False(t, ok, "least recently accessed entry should be evicted")
}

func TestTTLExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = time.Hour
	c := New(cfg, zap.NewNop())

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Put("write a cover letter for software engineer role", "stale soon", 0.5, nil)
	clock = clock.Add(2 * time.Hour)

	_, ok := c.Get("write a cover letter for software engineer role", nil)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestMetadataBonus(t *testing.T) {
	tests := []struct {
		name   string
		query  map[string]string
		stored map[string]string
		want   float64
	}{
		{"both empty", nil, nil, 0},
		{"no common keys", map[string]string{"a": "1"}, map[string]string{"b": "2"}, 0},
		{"all matching", map[string]string{"tone": "formal", "lang": "en"}, map[string]string{"tone": "formal", "lang": "en"}, 0.1},
		{"half matching", map[string]string{"tone": "formal", "lang": "en"}, map[string]string{"tone": "casual", "lang": "en"}, 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, metadataBonus(tt.query, tt.stored), 1e-9)
		})
	}
}

func TestPurgeBelowQuality(t *testing.T) {
	c := New(testConfig(), zap.NewNop())
	c.Put("write a cover letter for software engineer role", "good", 0.9, nil)
	c.Put("summarize quarterly revenue figures finance team", "bad", 0.2, nil)

	removed := c.PurgeBelowQuality(0.5)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Stats().Entries)

	_, ok := c.Get("write a cover letter for software engineer role", nil)
	assert.True(t, ok)
}

func TestRefitAfterEnoughPuts(t *testing.T) {
	c := New(testConfig(), zap.NewNop())
	for i := 0; i < refitEvery; i++ {
		c.Put(fmt.Sprintf("candidate resume section number %d with shared vocabulary", i),
			fmt.Sprintf("response %d", i), 0.5, nil)
	}

	stats := c.Stats()
	require.True(t, stats.EmbedderFitted)

	// Entries were re-embedded into the fitted space, so lookups still work.
	got, ok := c.Get("candidate resume section number 7 with shared vocabulary", nil)
	require.True(t, ok)
	assert.Equal(t, "response 7", got)
}

func TestSnapshotRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.SnapshotPath = filepath.Join(t.TempDir(), "semantic.json")

	c := New(cfg, zap.NewNop())
	for i := 0; i < snapshotEvery; i++ {
		c.Put(fmt.Sprintf("stored prompt number %d about resume writing", i),
			fmt.Sprintf("response %d", i), 0.5, nil)
	}

	restored := New(cfg, zap.NewNop())
	assert.Equal(t, snapshotEvery, restored.Stats().Entries)

	got, ok := restored.Get("stored prompt number 3 about resume writing", nil)
	require.True(t, ok)
	assert.Equal(t, "response 3", got)
}
