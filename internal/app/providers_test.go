package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cinechat/pkg/domain"
	"cinechat/pkg/movies"
)

func historyOf(userMsg, aiMsg string) []domain.Message {
	return []domain.Message{
		{Kind: domain.KindHuman, Content: userMsg},
		{Kind: domain.KindAI, Content: aiMsg},
	}
}

// scriptedGenerator returns canned responses in order of invocation.
type scriptedGenerator struct {
	responses []string
	prompts   []string
}

func (g *scriptedGenerator) GenerateText(_ context.Context, _ string, userPrompt string) (string, error) {
	g.prompts = append(g.prompts, userPrompt)
	if len(g.responses) == 0 {
		return "", nil
	}
	next := g.responses[0]
	g.responses = g.responses[1:]
	return next, nil
}

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search/movie", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "" {
			http.Error(w, `{"status_message":"query required"}`, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"id": 603, "title": "The Matrix", "release_date": "1999-03-31", "overview": "A hacker learns the truth.", "vote_average": 8.2},
			},
		})
	})
	mux.HandleFunc("/movie/603", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": 603, "title": "The Matrix", "release_date": "1999-03-31",
			"overview": "A hacker learns the truth.", "vote_average": 8.2, "runtime": 136,
			"genres":  []map[string]any{{"name": "Science Fiction"}},
			"credits": map[string]any{"crew": []map[string]any{{"name": "Lana Wachowski", "job": "Director"}}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEnrichedProviderGroundsReplyInCatalogFacts(t *testing.T) {
	srv := newCatalogServer(t)
	catalog := movies.NewClient("test-key", movies.WithBaseURL(srv.URL))
	gen := &scriptedGenerator{responses: []string{
		`{"query": "the matrix", "year": "1999"}`,
		"You should watch The Matrix (1999).",
	}}
	p := newEnrichedProvider(gen, catalog)

	if !p.Configured() {
		t.Fatal("provider with generator and catalog key should be configured")
	}
	reply, err := p.Reply(context.Background(), "something like the matrix", nil)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply != "You should watch The Matrix (1999)." {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if len(gen.prompts) != 2 {
		t.Fatalf("generator calls = %d, want classification + generation", len(gen.prompts))
	}
	facts := gen.prompts[1]
	for _, want := range []string{"The Matrix", "(1999)", "Lana Wachowski", "Science Fiction"} {
		if !strings.Contains(facts, want) {
			t.Fatalf("generation prompt missing %q:\n%s", want, facts)
		}
	}
}

func TestEnrichedProviderFallsBackToRawQueryOnBadClassification(t *testing.T) {
	srv := newCatalogServer(t)
	catalog := movies.NewClient("test-key", movies.WithBaseURL(srv.URL))
	gen := &scriptedGenerator{responses: []string{
		"sorry, no json here",
		"Try The Matrix.",
	}}
	p := newEnrichedProvider(gen, catalog)

	reply, err := p.Reply(context.Background(), "matrix-like movies", nil)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply != "Try The Matrix." {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestEnrichedProviderUnconfiguredWithoutCatalogKey(t *testing.T) {
	p := newEnrichedProvider(&scriptedGenerator{}, movies.NewClient(""))
	if p.Configured() {
		t.Fatal("provider without catalog credentials must report unconfigured")
	}
}

func TestDirectProviderIncludesHistory(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"How about Dune?"}}
	p := newDirectProvider(gen)

	history := historyOf("hi", "hello! what do you like?")
	reply, err := p.Reply(context.Background(), "epic sci-fi please", history)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply != "How about Dune?" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "User: hi") || !strings.Contains(prompt, "Assistant: hello! what do you like?") {
		t.Fatalf("prompt missing history:\n%s", prompt)
	}
	if !strings.Contains(prompt, "User: epic sci-fi please") {
		t.Fatalf("prompt missing new message:\n%s", prompt)
	}
}
