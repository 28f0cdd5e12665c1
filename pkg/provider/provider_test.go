package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/draftsmith/genpipe/pkg/config"
)

func TestStaticDeterministic(t *testing.T) {
	g := NewStatic(config.ProviderConfig{Name: "dry-run"})

	a, err := g.Generate(context.Background(), "write a cover letter")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := g.Generate(context.Background(), "write a cover letter")
	if a != b {
		t.Error("static generator must be deterministic")
	}
	if !strings.Contains(a, "dry-run") {
		t.Errorf("expected provider name in output, got %q", a)
	}
}

func TestOpenAICompatGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello from upstream"}}]}`))
	}))
	defer srv.Close()

	g, err := NewOpenAICompat(config.ProviderConfig{
		Name: "deepseek", URL: srv.URL, APIKey: "sk-test", Model: "deepseek-chat",
	})
	if err != nil {
		t.Fatal(err)
	}

	out, err := g.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello from upstream" {
		t.Errorf("unexpected content %q", out)
	}
}

func TestOpenAICompatUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g, err := NewOpenAICompat(config.ProviderConfig{Name: "deepseek", URL: srv.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Generate(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestBuildSkipsBroken(t *testing.T) {
	gens := Build(context.Background(), []config.ProviderConfig{
		{Name: "dry", Type: "static", Enabled: true},
		{Name: "off", Type: "static", Enabled: false},
		{Name: "keyless", Type: "openai-compat", Enabled: true},
	}, zap.NewNop())

	if len(gens) != 1 {
		t.Fatalf("expected 1 generator, got %d", len(gens))
	}
	if _, ok := gens["dry"]; !ok {
		t.Error("expected the static provider to be built")
	}
}
