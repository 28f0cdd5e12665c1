package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

type record struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	in := []record{{Name: "a", Score: 1}, {Name: "b", Score: 2}}

	if err := Save(path, "records/v1", in); err != nil {
		t.Fatal(err)
	}

	out, err := Load[record](path, "records/v1", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	if out[1].Name != "b" || out[1].Score != 2 {
		t.Errorf("unexpected record: %+v", out[1])
	}
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	out, err := Load[record](filepath.Join(t.TempDir(), "absent.json"), "records/v1", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if out != nil {
		t.Errorf("expected nil for missing file, got %v", out)
	}
}

func TestLoadDropsBadEntities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	doc := Document{
		Schema:      "records/v1",
		LastUpdated: time.Now().UTC(),
		Entities: []json.RawMessage{
			json.RawMessage(`{"name":"good","score":3}`),
			json.RawMessage(`{"name":"bad","score":"not-a-number"}`),
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := Load[record](path, "records/v1", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 record after dropping corrupt entity, got %d", len(out))
	}
	if out[0].Name != "good" {
		t.Errorf("unexpected record: %+v", out[0])
	}
}
