package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"cinechat/pkg/ai"
	"cinechat/pkg/domain"
	"cinechat/pkg/movies"
)

const (
	enrichedHistoryLimit = 6
	directHistoryLimit   = 10
	maxDetailFetches     = 3
)

const recommendSystemPrompt = "You are a friendly movie recommendation assistant in a chat room. " +
	"Recommend movies that match the user's taste, explain briefly why each fits, and keep replies conversational."

const classifySystemPrompt = "You extract movie search parameters from a chat message. " +
	"Respond with a single JSON object with optional string fields " +
	`"query", "year", "region", "language" and nothing else. ` +
	`"query" is the title or theme to search for. Use two-letter codes for region and language.`

// enrichedProvider is the primary provider: it infers search parameters
// from the user message, queries the metadata catalog for candidates and
// their credited directors, and grounds the generation call in those facts.
type enrichedProvider struct {
	generator ai.TextGenerator
	catalog   *movies.Client
}

func newEnrichedProvider(generator ai.TextGenerator, catalog *movies.Client) *enrichedProvider {
	return &enrichedProvider{generator: generator, catalog: catalog}
}

func (p *enrichedProvider) Name() string { return "enriched" }

func (p *enrichedProvider) Configured() bool {
	return p.generator != nil && p.catalog.Configured()
}

func (p *enrichedProvider) Reply(ctx context.Context, userMessage string, history []domain.Message) (string, error) {
	params := p.inferSearchParams(ctx, userMessage)
	candidates, err := p.catalog.Search(ctx, params)
	if err != nil {
		return "", fmt.Errorf("search candidates: %w", err)
	}
	facts := p.fetchFacts(ctx, candidates)

	var sb strings.Builder
	if historyText := formatHistory(history, enrichedHistoryLimit); historyText != "" {
		sb.WriteString("Conversation so far:\n")
		sb.WriteString(historyText)
		sb.WriteString("\n\n")
	}
	sb.WriteString("User: ")
	sb.WriteString(userMessage)
	sb.WriteString("\n\n")
	if facts == "" {
		sb.WriteString("The movie catalog returned no matches; say so and recommend from general knowledge.")
	} else {
		sb.WriteString("Verified catalog facts, base your recommendations on these:\n")
		sb.WriteString(facts)
	}
	return p.generator.GenerateText(ctx, recommendSystemPrompt, sb.String())
}

// inferSearchParams asks the generator for structured search parameters.
// Any failure degrades to searching the raw message text.
func (p *enrichedProvider) inferSearchParams(ctx context.Context, userMessage string) movies.SearchParams {
	fallback := movies.SearchParams{Query: userMessage}
	raw, err := p.generator.GenerateText(ctx, classifySystemPrompt, userMessage)
	if err != nil {
		slog.Debug("search param classification failed", "err", err)
		return fallback
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return fallback
	}
	var params movies.SearchParams
	if err := json.Unmarshal([]byte(raw[start:end+1]), &params); err != nil {
		slog.Debug("search param parse failed", "err", err)
		return fallback
	}
	if strings.TrimSpace(params.Query) == "" {
		params.Query = userMessage
	}
	return params
}

// fetchFacts loads details for a bounded number of candidates concurrently
// and renders them as grounding lines. Individual detail failures only drop
// that candidate.
func (p *enrichedProvider) fetchFacts(ctx context.Context, candidates []movies.Movie) string {
	if len(candidates) > maxDetailFetches {
		candidates = candidates[:maxDetailFetches]
	}
	details := make([]movies.Detail, len(candidates))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxDetailFetches)
	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			detail, err := p.catalog.Details(gctx, candidate.ID)
			if err != nil {
				slog.Debug("movie detail fetch failed", "movie_id", candidate.ID, "err", err)
				detail = movies.Detail{Movie: candidate}
			}
			mu.Lock()
			details[i] = detail
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var sb strings.Builder
	for _, d := range details {
		if d.Title == "" {
			continue
		}
		sb.WriteString("- ")
		sb.WriteString(d.Title)
		if d.Year != "" {
			sb.WriteString(" (" + d.Year + ")")
		}
		if d.Director != "" {
			sb.WriteString(", directed by " + d.Director)
		}
		if d.Rating > 0 {
			sb.WriteString(fmt.Sprintf(", rated %.1f/10", d.Rating))
		}
		if len(d.Genres) > 0 {
			sb.WriteString(", genres: " + strings.Join(d.Genres, "/"))
		}
		if d.Overview != "" {
			overview := d.Overview
			if len(overview) > 240 {
				overview = overview[:240] + "…"
			}
			sb.WriteString(". " + overview)
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// directProvider is the secondary provider: a plain LLM call with an
// instruction-only prompt and a longer history window.
type directProvider struct {
	generator ai.TextGenerator
}

func newDirectProvider(generator ai.TextGenerator) *directProvider {
	return &directProvider{generator: generator}
}

func (p *directProvider) Name() string { return "direct" }

func (p *directProvider) Configured() bool { return p.generator != nil }

func (p *directProvider) Reply(ctx context.Context, userMessage string, history []domain.Message) (string, error) {
	var sb strings.Builder
	if historyText := formatHistory(history, directHistoryLimit); historyText != "" {
		sb.WriteString("Conversation so far:\n")
		sb.WriteString(historyText)
		sb.WriteString("\n\n")
	}
	sb.WriteString("User: ")
	sb.WriteString(userMessage)
	return p.generator.GenerateText(ctx, recommendSystemPrompt, sb.String())
}
