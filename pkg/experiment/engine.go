// Package experiment is the A/B testing engine: deterministic variant
// assignment, append-only event recording, and statistical analysis of
// generation strategies.
package experiment

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/draftsmith/genpipe/pkg/config"
	"github.com/draftsmith/genpipe/pkg/models"
	"github.com/draftsmith/genpipe/pkg/snapshot"
)

const (
	// snapshotEvery persists state every N recorded events.
	snapshotEvery = 10

	// splitTolerance is how far a traffic split may drift from 1.0.
	splitTolerance = 0.01

	snapshotSchema = "experiments/v1"
)

// record is the snapshot wire format: one experiment with its events.
type record struct {
	Experiment models.Experiment        `json:"experiment"`
	Events     []models.ExperimentEvent `json:"events"`
}

// Engine owns experiment definitions and their events. One mutex guards
// both maps; snapshot file I/O happens after the lock is released.
type Engine struct {
	mu          sync.Mutex
	cfg         config.ExperimentConfig
	logger      *zap.Logger
	experiments map[string]*models.Experiment
	events      []models.ExperimentEvent
	now         func() time.Time
}

// New creates an Engine, restoring prior experiments and events when a
// snapshot path is configured.
func New(cfg config.ExperimentConfig, logger *zap.Logger) *Engine {
	if cfg.SignificanceLevel <= 0 || cfg.SignificanceLevel >= 1 {
		cfg.SignificanceLevel = 0.05
	}
	if cfg.MinSampleSize <= 0 {
		cfg.MinSampleSize = 100
	}
	e := &Engine{
		cfg:         cfg,
		logger:      logger,
		experiments: make(map[string]*models.Experiment),
		now:         time.Now,
	}
	e.restore()
	return e
}

func (e *Engine) restore() {
	if e.cfg.SnapshotPath == "" {
		return
	}
	records, err := snapshot.Load[record](e.cfg.SnapshotPath, snapshotSchema, e.logger)
	if err != nil {
		e.logger.Warn("could not load experiment snapshot", zap.Error(err))
		return
	}
	for i := range records {
		r := records[i]
		if r.Experiment.ID == "" {
			continue
		}
		exp := r.Experiment
		e.experiments[exp.ID] = &exp
		e.events = append(e.events, r.Events...)
	}
	if len(e.experiments) > 0 {
		e.logger.Info("restored experiments",
			zap.Int("experiments", len(e.experiments)),
			zap.Int("events", len(e.events)))
	}
}

// Create registers a new experiment and activates it immediately.
// Validation failures are configuration errors and never coerced.
func (e *Engine) Create(exp models.Experiment) (models.Experiment, error) {
	if strings.TrimSpace(exp.ID) == "" {
		return models.Experiment{}, fmt.Errorf("experiment id is required")
	}
	if len(exp.Variants) == 0 {
		return models.Experiment{}, fmt.Errorf("experiment %s has no variants", exp.ID)
	}

	seen := make(map[string]bool, len(exp.Variants))
	var sum float64
	for _, v := range exp.Variants {
		if strings.TrimSpace(v) == "" {
			return models.Experiment{}, fmt.Errorf("experiment %s has a blank variant", exp.ID)
		}
		if seen[v] {
			return models.Experiment{}, fmt.Errorf("experiment %s has duplicate variant %q", exp.ID, v)
		}
		seen[v] = true
		share, ok := exp.TrafficSplit[v]
		if !ok {
			return models.Experiment{}, fmt.Errorf("experiment %s: variant %q missing from traffic split", exp.ID, v)
		}
		sum += share
	}
	if len(exp.TrafficSplit) != len(exp.Variants) {
		return models.Experiment{}, fmt.Errorf("experiment %s: traffic split names unknown variants", exp.ID)
	}
	if math.Abs(sum-1.0) > splitTolerance {
		return models.Experiment{}, fmt.Errorf("experiment %s: traffic split sums to %.3f, want 1.0", exp.ID, sum)
	}

	if exp.TargetMetric == "" {
		exp.TargetMetric = "quality_score"
	}
	if exp.MinSampleSize <= 0 {
		exp.MinSampleSize = e.cfg.MinSampleSize
	}
	if exp.Significance <= 0 {
		exp.Significance = e.cfg.SignificanceLevel
	}
	if exp.CreatedBy == "" {
		exp.CreatedBy = "system"
	}
	exp.StartTime = e.now()
	exp.Active = true

	e.mu.Lock()
	if _, ok := e.experiments[exp.ID]; ok {
		e.mu.Unlock()
		return models.Experiment{}, fmt.Errorf("experiment %s already exists", exp.ID)
	}
	e.experiments[exp.ID] = &exp
	toSave := e.snapshotLocked()
	e.mu.Unlock()

	e.save(toSave)
	e.logger.Info("created experiment",
		zap.String("id", exp.ID),
		zap.String("name", exp.Name),
		zap.Strings("variants", exp.Variants))
	return exp, nil
}

// Assign returns the variant for a subject, or false when the experiment
// is unknown, inactive, or outside its time window. Assignment is a pure
// function of (experiment id, subject id) for the life of the experiment.
func (e *Engine) Assign(experimentID, subjectID string) (string, bool) {
	e.mu.Lock()
	exp, ok := e.experiments[experimentID]
	if !ok {
		e.mu.Unlock()
		return "", false
	}
	now := e.now()
	if !exp.Active || now.Before(exp.StartTime) || (exp.EndTime != nil && now.After(*exp.EndTime)) {
		e.mu.Unlock()
		return "", false
	}
	variants := exp.Variants
	split := exp.TrafficSplit
	e.mu.Unlock()

	h := fnv.New64a()
	h.Write([]byte(experimentID))
	h.Write([]byte{':'})
	h.Write([]byte(subjectID))
	rv := float64(h.Sum64()%10000) / 10000.0

	cumulative := 0.0
	for _, v := range variants {
		cumulative += split[v]
		if rv <= cumulative {
			return v, true
		}
	}
	// Rounding can leave a sliver of [0,1) unassigned.
	return variants[0], true
}

// Record appends an observation. An unknown experiment id is logged and
// dropped so metric recording never blocks generation.
func (e *Engine) Record(experimentID, subjectID, variant string, metrics map[string]float64, metadata map[string]string) {
	e.mu.Lock()
	if _, ok := e.experiments[experimentID]; !ok {
		e.mu.Unlock()
		e.logger.Warn("event for unknown experiment", zap.String("id", experimentID))
		return
	}
	e.events = append(e.events, models.ExperimentEvent{
		ID:           uuid.NewString(),
		ExperimentID: experimentID,
		SubjectID:    subjectID,
		Variant:      variant,
		Timestamp:    e.now(),
		Metrics:      metrics,
		Metadata:     metadata,
	})
	var toSave []record
	if len(e.events)%snapshotEvery == 0 {
		toSave = e.snapshotLocked()
	}
	e.mu.Unlock()

	if toSave != nil {
		e.save(toSave)
	}
}

// Analyze computes the full statistical readout for an experiment.
func (e *Engine) Analyze(experimentID string) (models.AnalysisResult, error) {
	e.mu.Lock()
	exp, ok := e.experiments[experimentID]
	if !ok {
		e.mu.Unlock()
		return models.AnalysisResult{}, fmt.Errorf("experiment %s not found", experimentID)
	}
	cfg := *exp

	byVariant := make(map[string][]float64)
	total := 0
	for _, ev := range e.events {
		if ev.ExperimentID != experimentID {
			continue
		}
		total++
		if v, ok := ev.Metrics[cfg.TargetMetric]; ok {
			byVariant[ev.Variant] = append(byVariant[ev.Variant], v)
		}
	}
	e.mu.Unlock()

	if total == 0 {
		return models.AnalysisResult{}, fmt.Errorf("experiment %s has no recorded events", experimentID)
	}

	res := models.AnalysisResult{
		Experiment:   cfg,
		VariantStats: make(map[string]models.VariantStats, len(byVariant)),
		TotalEvents:  total,
		AnalyzedAt:   e.now(),
	}

	// Walk variants in declared order so pairwise output is stable.
	observed := make([]string, 0, len(byVariant))
	for _, v := range cfg.Variants {
		if values, ok := byVariant[v]; ok && len(values) > 0 {
			observed = append(observed, v)
			res.VariantStats[v] = describeVariant(values, cfg.Significance)
		}
	}
	for v, values := range byVariant {
		if _, ok := res.VariantStats[v]; !ok && len(values) > 0 {
			observed = append(observed, v)
			res.VariantStats[v] = describeVariant(values, cfg.Significance)
		}
	}

	for i, a := range observed {
		for _, b := range observed[i+1:] {
			da, db := byVariant[a], byVariant[b]
			if len(da) < 2 || len(db) < 2 {
				continue
			}
			tStat, p := tTest(da, db)
			res.Pairwise = append(res.Pairwise, models.PairwiseTest{
				VariantA:      a,
				VariantB:      b,
				TStatistic:    tStat,
				PValue:        p,
				IsSignificant: p < cfg.Significance,
				CohensD:       cohensD(da, db),
				SampleSizeA:   len(da),
				SampleSizeB:   len(db),
			})
		}
	}

	if len(observed) > 2 {
		groups := make([][]float64, 0, len(observed))
		for _, v := range observed {
			groups = append(groups, byVariant[v])
		}
		if anova, ok := oneWayANOVA(groups, cfg.Significance); ok {
			res.ANOVA = &anova
		}
	}

	res.Winner = determineWinner(res.VariantStats, res.Pairwise)
	res.SampleAdequacy = checkAdequacy(byVariant, cfg.MinSampleSize)
	return res, nil
}

// determineWinner reproduces the product's confidence bucketing: the top
// mean wins "high" when it has a significant pairwise win, another
// significant winner takes "medium", otherwise the top mean wins "low".
func determineWinner(stats map[string]models.VariantStats, pairwise []models.PairwiseTest) *models.Winner {
	if len(stats) == 0 {
		return nil
	}

	names := make([]string, 0, len(stats))
	for v := range stats {
		names = append(names, v)
	}
	sort.Strings(names)

	best := names[0]
	for _, v := range names[1:] {
		if stats[v].Mean > stats[best].Mean {
			best = v
		}
	}

	significantWins := make(map[string]bool)
	for _, p := range pairwise {
		if !p.IsSignificant {
			continue
		}
		if stats[p.VariantA].Mean > stats[p.VariantB].Mean {
			significantWins[p.VariantA] = true
		} else {
			significantWins[p.VariantB] = true
		}
	}

	if significantWins[best] {
		return &models.Winner{
			Variant:    best,
			Mean:       stats[best].Mean,
			Confidence: models.ConfidenceHigh,
			Reason:     "Statistically significant improvement",
		}
	}
	if len(significantWins) > 0 {
		top := ""
		for _, v := range names {
			if significantWins[v] && (top == "" || stats[v].Mean > stats[top].Mean) {
				top = v
			}
		}
		return &models.Winner{
			Variant:    top,
			Mean:       stats[top].Mean,
			Confidence: models.ConfidenceMedium,
			Reason:     "Statistically significant among multiple variants",
		}
	}
	return &models.Winner{
		Variant:    best,
		Mean:       stats[best].Mean,
		Confidence: models.ConfidenceLow,
		Reason:     "Highest mean but not statistically significant",
	}
}

func checkAdequacy(byVariant map[string][]float64, minSamples int) models.SampleAdequacy {
	out := models.SampleAdequacy{
		OverallAdequate: true,
		Variants:        make(map[string]models.VariantAdequacy, len(byVariant)),
	}
	for v, values := range byVariant {
		n := len(values)
		adequate := n >= minSamples
		out.Variants[v] = models.VariantAdequacy{
			SampleSize:    n,
			MinRequired:   minSamples,
			IsAdequate:    adequate,
			AdequacyRatio: float64(n) / float64(minSamples),
		}
		if !adequate {
			out.OverallAdequate = false
		}
	}
	if out.OverallAdequate {
		out.Recommendation = "Test ready for conclusion"
	} else {
		out.Recommendation = "Continue test"
	}
	return out
}

// Stop deactivates an experiment. Stopping twice is harmless.
func (e *Engine) Stop(experimentID, reason string) error {
	e.mu.Lock()
	exp, ok := e.experiments[experimentID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("experiment %s not found", experimentID)
	}
	exp.Active = false
	now := e.now()
	exp.EndTime = &now
	toSave := e.snapshotLocked()
	e.mu.Unlock()

	e.save(toSave)
	e.logger.Info("stopped experiment",
		zap.String("id", experimentID),
		zap.String("reason", reason))
	return nil
}

// ListActive returns experiments currently accepting traffic, sorted by id.
func (e *Engine) ListActive() []models.Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	out := make([]models.Experiment, 0, len(e.experiments))
	for _, exp := range e.experiments {
		if exp.Active && !now.Before(exp.StartTime) && (exp.EndTime == nil || exp.EndTime.After(now)) {
			out = append(out, *exp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Summary reports engine-wide state for the dashboard.
func (e *Engine) Summary() models.ExperimentSummary {
	active := e.ListActive()

	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(active))
	for _, exp := range active {
		ids = append(ids, exp.ID)
	}
	recentCutoff := e.now().AddDate(0, 0, -7)
	recent := 0
	for _, ev := range e.events {
		if ev.Timestamp.After(recentCutoff) {
			recent++
		}
	}
	return models.ExperimentSummary{
		TotalExperiments: len(e.experiments),
		ActiveCount:      len(active),
		TotalEvents:      len(e.events),
		ActiveIDs:        ids,
		RecentEvents:     recent,
	}
}

// SaveSnapshot persists all experiments and events immediately.
func (e *Engine) SaveSnapshot() error {
	if e.cfg.SnapshotPath == "" {
		return nil
	}
	e.mu.Lock()
	toSave := e.snapshotLocked()
	e.mu.Unlock()
	return snapshot.Save(e.cfg.SnapshotPath, snapshotSchema, toSave)
}

func (e *Engine) snapshotLocked() []record {
	if e.cfg.SnapshotPath == "" {
		return nil
	}
	byExp := make(map[string][]models.ExperimentEvent)
	for _, ev := range e.events {
		byExp[ev.ExperimentID] = append(byExp[ev.ExperimentID], ev)
	}
	ids := make([]string, 0, len(e.experiments))
	for id := range e.experiments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]record, 0, len(ids))
	for _, id := range ids {
		out = append(out, record{Experiment: *e.experiments[id], Events: byExp[id]})
	}
	return out
}

func (e *Engine) save(records []record) {
	if records == nil {
		return
	}
	if err := snapshot.Save(e.cfg.SnapshotPath, snapshotSchema, records); err != nil {
		e.logger.Warn("could not save experiment snapshot", zap.Error(err))
	}
}
