// Package semantic is the similarity-indexed response cache: entries match
// by embedding distance rather than exact string equality, so paraphrased
// prompts can reuse a paid generation.
package semantic

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/draftsmith/genpipe/pkg/config"
	"github.com/draftsmith/genpipe/pkg/models"
	"github.com/draftsmith/genpipe/pkg/snapshot"
)

const (
	// refitEvery re-trains the fitted embedder over live prompts every N
	// inserts so the vector space tracks current traffic.
	refitEvery = 50

	// snapshotEvery persists the cache every N inserts.
	snapshotEvery = 10

	// metadataBonusMax is the largest boost matching metadata can add to
	// raw cosine similarity.
	metadataBonusMax = 0.1

	snapshotSchema = "semantic_cache/v1"
)

// Cache is the semantic response cache. One mutex guards the entry map,
// eviction, and re-fitting; snapshot writes serialize under the lock but
// perform file I/O after releasing it.
type Cache struct {
	mu      sync.Mutex
	cfg     config.SemanticConfig
	logger  *zap.Logger
	entries map[string]*models.SemanticEntry
	trained *TFIDFEmbedder
	hashed  *HashEmbedder
	puts    int
	hits    atomic.Int64
	misses  atomic.Int64
	now     func() time.Time
}

// New creates a Cache and, when a snapshot path is configured, restores
// prior entries, fits the embedder on their prompts, and re-embeds them so
// the restored entries live in the freshly fitted vector space.
func New(cfg config.SemanticConfig, logger *zap.Logger) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = 0.85
	}
	c := &Cache{
		cfg:     cfg,
		logger:  logger,
		entries: make(map[string]*models.SemanticEntry),
		trained: NewTFIDFEmbedder(0),
		hashed:  NewHashEmbedder(),
		now:     time.Now,
	}
	c.restore()
	return c
}

func (c *Cache) restore() {
	if c.cfg.SnapshotPath == "" {
		return
	}
	loaded, err := snapshot.Load[models.SemanticEntry](c.cfg.SnapshotPath, snapshotSchema, c.logger)
	if err != nil {
		c.logger.Warn("could not load semantic cache snapshot", zap.Error(err))
		return
	}
	cutoff := c.now().Add(-c.cfg.TTL)
	for i := range loaded {
		e := loaded[i]
		if c.cfg.TTL > 0 && e.CreatedAt.Before(cutoff) {
			continue
		}
		if e.ContentHash == "" || e.PromptText == "" || e.ResponseText == "" {
			continue
		}
		c.entries[e.ContentHash] = &e
	}
	c.refitLocked()
	if len(c.entries) > 0 {
		c.logger.Info("restored semantic cache", zap.Int("entries", len(c.entries)))
	}
}

// embed picks the strategy by capability: the fitted embedder once trained,
// the hash fallback before that.
func (c *Cache) embed(text string) []float64 {
	if c.trained.Fitted() {
		return c.trained.Embed(text)
	}
	return c.hashed.Embed(text)
}

func contentHash(prompt, response string) string {
	h := sha256.New()
	h.Write([]byte(prompt))
	h.Write([]byte{':'})
	h.Write([]byte(response))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get returns the response of the most similar live entry whose combined
// score (cosine similarity plus metadata bonus) meets the threshold.
func (c *Cache) Get(prompt string, metadata map[string]string) (string, bool) {
	if strings.TrimSpace(prompt) == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()

	query := c.embed(prompt)
	var best *models.SemanticEntry
	bestScore := 0.0

	for _, e := range c.entries {
		score := cosine(query, e.Embedding) + metadataBonus(metadata, e.Metadata)
		if score >= c.cfg.SimilarityThreshold && score > bestScore {
			bestScore = score
			best = e
		}
	}

	if best == nil {
		c.misses.Add(1)
		return "", false
	}

	best.LastAccessed = c.now()
	best.AccessCount++
	c.hits.Add(1)
	c.logger.Debug("semantic cache hit",
		zap.Float64("similarity", bestScore),
		zap.String("entry", best.ID))
	return best.ResponseText, true
}

// metadataBonus scales with the fraction of shared metadata keys whose
// values agree, capped at metadataBonusMax.
func metadataBonus(query, stored map[string]string) float64 {
	if len(query) == 0 || len(stored) == 0 {
		return 0
	}
	common, matching := 0, 0
	for k, v := range query {
		sv, ok := stored[k]
		if !ok {
			continue
		}
		common++
		if sv == v {
			matching++
		}
	}
	if common == 0 {
		return 0
	}
	return float64(matching) / float64(common) * metadataBonusMax
}

// Put inserts a prompt/response pair. Blank inputs and exact duplicates are
// no-ops. Insertion triggers TTL cleanup, LRU eviction back to capacity,
// periodic re-fitting, and periodic snapshotting.
func (c *Cache) Put(prompt, response string, qualityScore float64, metadata map[string]string) {
	if strings.TrimSpace(prompt) == "" || strings.TrimSpace(response) == "" {
		return
	}

	c.mu.Lock()
	key := contentHash(prompt, response)
	if _, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return
	}

	now := c.now()
	c.entries[key] = &models.SemanticEntry{
		ID:           uuid.NewString(),
		ContentHash:  key,
		PromptText:   prompt,
		ResponseText: response,
		Embedding:    c.embed(prompt),
		Metadata:     metadata,
		CreatedAt:    now,
		LastAccessed: now,
		QualityScore: qualityScore,
	}
	c.puts++

	c.cleanupLocked()
	c.evictLocked()
	if c.puts%refitEvery == 0 {
		c.refitLocked()
	}

	var toSave []models.SemanticEntry
	if c.cfg.SnapshotPath != "" && c.puts%snapshotEvery == 0 {
		toSave = c.copyEntriesLocked()
	}
	c.mu.Unlock()

	if toSave != nil {
		c.save(toSave)
	}
}

// PurgeBelowQuality removes every entry scored under minQuality and returns
// how many were dropped. Cache hygiene, not a hot-path operation.
func (c *Cache) PurgeBelowQuality(minQuality float64) int {
	c.mu.Lock()
	removed := 0
	for key, e := range c.entries {
		if e.QualityScore < minQuality {
			delete(c.entries, key)
			removed++
		}
	}
	var toSave []models.SemanticEntry
	if removed > 0 && c.cfg.SnapshotPath != "" {
		toSave = c.copyEntriesLocked()
	}
	c.mu.Unlock()

	if removed > 0 {
		c.logger.Info("purged low-quality cache entries",
			zap.Int("removed", removed),
			zap.Float64("min_quality", minQuality))
	}
	if toSave != nil {
		c.save(toSave)
	}
	return removed
}

// SaveSnapshot persists the cache immediately.
func (c *Cache) SaveSnapshot() error {
	if c.cfg.SnapshotPath == "" {
		return nil
	}
	c.mu.Lock()
	toSave := c.copyEntriesLocked()
	c.mu.Unlock()
	return snapshot.Save(c.cfg.SnapshotPath, snapshotSchema, toSave)
}

// Stats reports cache state for the dashboard.
func (c *Cache) Stats() models.SemanticCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := models.SemanticCacheStats{
		Entries:             len(c.entries),
		Hits:                c.hits.Load(),
		Misses:              c.misses.Load(),
		EmbedderFitted:      c.trained.Fitted(),
		SimilarityThreshold: c.cfg.SimilarityThreshold,
	}
	if len(c.entries) == 0 {
		return s
	}
	now := c.now()
	var access, quality, ageHours float64
	for _, e := range c.entries {
		access += float64(e.AccessCount)
		quality += e.QualityScore
		ageHours += now.Sub(e.CreatedAt).Hours()
	}
	n := float64(len(c.entries))
	s.AvgAccessCount = access / n
	s.AvgQualityScore = quality / n
	s.AvgAgeHours = ageHours / n
	return s
}

func (c *Cache) cleanupLocked() {
	if c.cfg.TTL <= 0 {
		return
	}
	cutoff := c.now().Add(-c.cfg.TTL)
	expired := 0
	for key, e := range c.entries {
		if e.CreatedAt.Before(cutoff) {
			delete(c.entries, key)
			expired++
		}
	}
	if expired > 0 {
		c.logger.Debug("expired semantic cache entries", zap.Int("count", expired))
	}
}

// evictLocked drops the least recently accessed entries until the cache is
// back under capacity.
func (c *Cache) evictLocked() {
	over := len(c.entries) - c.cfg.MaxEntries
	if over <= 0 {
		return
	}
	type keyed struct {
		key      string
		accessed time.Time
	}
	byAccess := make([]keyed, 0, len(c.entries))
	for key, e := range c.entries {
		byAccess = append(byAccess, keyed{key, e.LastAccessed})
	}
	sort.Slice(byAccess, func(i, j int) bool { return byAccess[i].accessed.Before(byAccess[j].accessed) })
	for i := 0; i < over; i++ {
		delete(c.entries, byAccess[i].key)
	}
	c.logger.Debug("evicted semantic cache entries", zap.Int("count", over))
}

// refitLocked re-trains the fitted embedder over all live prompts and
// re-embeds every entry so old and new vectors stay comparable.
func (c *Cache) refitLocked() {
	if len(c.entries) == 0 {
		return
	}
	corpus := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		corpus = append(corpus, e.PromptText)
	}
	c.trained.Fit(corpus)
	for _, e := range c.entries {
		e.Embedding = c.trained.Embed(e.PromptText)
	}
	c.logger.Debug("re-fitted semantic embedder", zap.Int("corpus", len(corpus)))
}

func (c *Cache) copyEntriesLocked() []models.SemanticEntry {
	out := make([]models.SemanticEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	return out
}

func (c *Cache) save(entries []models.SemanticEntry) {
	if err := snapshot.Save(c.cfg.SnapshotPath, snapshotSchema, entries); err != nil {
		c.logger.Warn("could not save semantic cache snapshot", zap.Error(err))
	}
}
