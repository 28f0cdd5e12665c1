// Package orchestrator runs the full generation flow: exact cache, semantic
// cache, provider dispatch with failover, and a deterministic fallback, with
// experiment assignment and audit logging around the result.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/draftsmith/genpipe/pkg/audit"
	"github.com/draftsmith/genpipe/pkg/cache/exact"
	"github.com/draftsmith/genpipe/pkg/cache/semantic"
	"github.com/draftsmith/genpipe/pkg/config"
	"github.com/draftsmith/genpipe/pkg/dispatch"
	"github.com/draftsmith/genpipe/pkg/experiment"
	"github.com/draftsmith/genpipe/pkg/models"
	"github.com/draftsmith/genpipe/pkg/provider"
	"github.com/draftsmith/genpipe/pkg/registry"
)

const (
	exactCacheLabel    = "exact_cache"
	semanticCacheLabel = "semantic_cache"
	fallbackLabel      = "fallback"

	// experimentSuffix derives the experiment id from the category, so a
	// "cover_letter" request consults "cover_letter_optimization".
	experimentSuffix = "_optimization"

	defaultVariant = "control"

	auditTimeout = 5 * time.Second
)

// Orchestrator is the generation entrypoint. Every call returns content and
// a trace; provider failures degrade to caches or the fallback, never to an
// error for the caller.
type Orchestrator struct {
	cfg        *config.Config
	logger     *zap.Logger
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	generators map[string]provider.Generator
	exactCache *exact.Cache
	semCache   *semantic.Cache
	engine     *experiment.Engine
	auditStore *audit.Store
	scorer     Scorer

	wg  sync.WaitGroup
	now func() time.Time
}

// New wires an Orchestrator. Either cache and the audit store may be nil,
// which disables that path.
func New(
	cfg *config.Config,
	reg *registry.Registry,
	disp *dispatch.Dispatcher,
	generators map[string]provider.Generator,
	exactCache *exact.Cache,
	semCache *semantic.Cache,
	engine *experiment.Engine,
	auditStore *audit.Store,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		registry:   reg,
		dispatcher: disp,
		generators: generators,
		exactCache: exactCache,
		semCache:   semCache,
		engine:     engine,
		auditStore: auditStore,
		scorer:     HeuristicScorer{},
		now:        time.Now,
	}
}

// Generate runs one request through the cache, dispatch, and fallback
// chain. The returned trace explains which path produced the content.
func (o *Orchestrator) Generate(ctx context.Context, req models.GenerationRequest) models.GenerationResult {
	start := o.now()
	requestID := uuid.NewString()

	variant := defaultVariant
	experimentID := req.Category + experimentSuffix
	if o.engine != nil {
		if v, ok := o.engine.Assign(experimentID, req.SubjectID); ok {
			variant = v
		}
	}

	key := exact.Key(req.Category, req.Prompt)
	if o.exactCache != nil {
		if content, ok := o.exactCache.Get(key); ok {
			res := models.GenerationResult{
				Provider: exactCacheLabel,
				Content:  content,
				Variant:  variant,
				Trace: []models.TraceEntry{{
					Provider:   exactCacheLabel,
					Status:     models.StatusCacheHit,
					DurationMs: o.sinceMs(start),
				}},
			}
			o.audit(requestID, req, res, "exact_hit", start)
			return res
		}
	}

	if o.semCache != nil {
		if content, ok := o.semCache.Get(req.Prompt, req.Metadata); ok {
			res := models.GenerationResult{
				Provider: semanticCacheLabel,
				Content:  content,
				Variant:  variant,
				Trace: []models.TraceEntry{{
					Provider:   semanticCacheLabel,
					Status:     models.StatusSemanticHit,
					DurationMs: o.sinceMs(start),
				}},
			}
			o.audit(requestID, req, res, "semantic_hit", start)
			return res
		}
	}

	candidates := o.registry.CandidateOrder(o.cfg.Providers)
	invoke := func(ctx context.Context, p config.ProviderConfig) (string, error) {
		gen, ok := o.generators[p.Name]
		if !ok {
			return "", &UnbuiltProviderError{Provider: p.Name}
		}
		if o.cfg.Dispatch.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.cfg.Dispatch.Timeout)
			defer cancel()
		}
		return gen.Generate(ctx, req.Prompt)
	}
	dispatchRes, err := o.dispatcher.Dispatch(ctx, candidates, invoke)
	if err != nil {
		trace := []models.TraceEntry{}
		if dispatchRes != nil {
			trace = dispatchRes.Trace
		}
		o.logger.Warn("generation fell back",
			zap.String("request_id", requestID),
			zap.String("category", req.Category),
			zap.Error(err))
		res := models.GenerationResult{
			Provider: fallbackLabel,
			Content:  FallbackContent(req.Category, req.Prompt),
			Variant:  variant,
			Trace: append(trace, models.TraceEntry{
				Provider:   fallbackLabel,
				Status:     models.StatusFallback,
				DurationMs: o.sinceMs(start),
			}),
		}
		o.audit(requestID, req, res, "fallback", start)
		return res
	}

	if o.exactCache != nil {
		o.exactCache.Put(key, dispatchRes.Content)
	}

	score := o.scorer.Score(req.Prompt, dispatchRes.Content)
	if o.semCache != nil {
		o.semCache.Put(req.Prompt, dispatchRes.Content, score, req.Metadata)
	}
	if o.engine != nil {
		o.engine.Record(experimentID, req.SubjectID, variant,
			map[string]float64{
				"quality_score":      score,
				"generation_time_ms": float64(o.sinceMs(start)),
			},
			map[string]string{
				"provider": dispatchRes.Provider,
				"category": req.Category,
			})
	}

	res := models.GenerationResult{
		Provider: dispatchRes.Provider,
		Content:  dispatchRes.Content,
		Variant:  variant,
		Trace:    dispatchRes.Trace,
	}
	o.audit(requestID, req, res, "miss", start)
	return res
}

// UnbuiltProviderError marks a configured provider whose client could not
// be constructed at startup.
type UnbuiltProviderError struct {
	Provider string
}

func (e *UnbuiltProviderError) Error() string {
	return "provider " + e.Provider + " has no client"
}

func (o *Orchestrator) sinceMs(start time.Time) int64 {
	return o.now().Sub(start).Milliseconds()
}

func (o *Orchestrator) audit(requestID string, req models.GenerationRequest, res models.GenerationResult, cacheStatus string, start time.Time) {
	if o.auditStore == nil {
		return
	}
	entry := models.AuditEntry{
		RequestID:   requestID,
		Category:    req.Category,
		SubjectHash: audit.HashSubject(req.SubjectID),
		Provider:    res.Provider,
		Variant:     res.Variant,
		CacheStatus: cacheStatus,
		LatencyMs:   o.sinceMs(start),
		Trace:       res.Trace,
		CreatedAt:   o.now(),
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := o.auditStore.Log(ctx, entry); err != nil {
			o.logger.Warn("audit write failed", zap.Error(err))
		}
	}()
}

// Close waits for in-flight audit writes.
func (o *Orchestrator) Close() {
	o.wg.Wait()
}
