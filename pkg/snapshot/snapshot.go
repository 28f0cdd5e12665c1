// Package snapshot reads and writes the per-component JSON snapshot files.
//
// Snapshots are best effort, last-writer-wins: there is no cross-process
// locking, and true durability requires an external store. Callers must
// serialize their state under their own lock and release it before calling
// Save so file I/O never blocks the hot path.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// Document is the top-level snapshot format shared by all components.
type Document struct {
	Schema      string            `json:"schema"`
	LastUpdated time.Time         `json:"last_updated"`
	Entities    []json.RawMessage `json:"entities"`
}

// Save writes entities to path under the given schema label. The write goes
// through a temp file and rename so a crash mid-write leaves the previous
// snapshot intact.
func Save[T any](path, schema string, entities []T) error {
	doc := Document{
		Schema:      schema,
		LastUpdated: time.Now().UTC(),
		Entities:    make([]json.RawMessage, 0, len(entities)),
	}
	for i := range entities {
		raw, err := json.Marshal(entities[i])
		if err != nil {
			return fmt.Errorf("marshal snapshot entity: %w", err)
		}
		doc.Entities = append(doc.Entities, raw)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load reads entities back from path. A missing file is not an error: the
// component starts empty. Unparseable records are logged and skipped rather
// than failing startup.
func Load[T any](path, schema string, logger *zap.Logger) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	if doc.Schema != "" && doc.Schema != schema {
		logger.Warn("snapshot schema mismatch, loading anyway",
			zap.String("path", path),
			zap.String("want", schema),
			zap.String("got", doc.Schema))
	}

	out := make([]T, 0, len(doc.Entities))
	for i, raw := range doc.Entities {
		var e T
		if err := json.Unmarshal(raw, &e); err != nil {
			logger.Warn("dropping unparseable snapshot entity",
				zap.String("path", path),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
