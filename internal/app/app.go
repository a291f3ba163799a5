package app

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"cinechat/pkg/ai"
	"cinechat/pkg/domain"
	"cinechat/pkg/movies"
	"cinechat/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store   // optional override, bypasses Postgres
	Redis       *redis.Client // optional, enables metadata caching

	GenerationProvider string
	GenerationModel    string
	GeminiAPIKey       string
	OpenAIBaseURL      string
	OpenAIAPIKey       string
	OllamaBaseURL      string

	TMDBAPIKey string
}

// App wires storage, the identity resolver, the room and message services,
// and the recommendation pipeline.
type App struct {
	Users       *Users
	Rooms       *Rooms
	Messages    *Messages
	Recommender *Recommender

	repairOnce sync.Once
}

// New constructs the application. The store handle is built here and passed
// to every component explicitly; nothing is lazily initialized later.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	generator, err := buildGenerator(cfg)
	if err != nil {
		return nil, err
	}
	if generator == nil {
		slog.Warn("no text generation provider configured, replies fall back to static text")
	}

	catalogOpts := []movies.Option{}
	if cfg.Redis != nil {
		catalogOpts = append(catalogOpts, movies.WithCache(cfg.Redis, 6*time.Hour))
	}
	catalog := movies.NewClient(cfg.TMDBAPIKey, catalogOpts...)
	if !catalog.Configured() {
		slog.Warn("movie metadata provider not configured, replies are not catalog-grounded")
	}

	return &App{
		Users:    NewUsers(dataStore),
		Rooms:    NewRooms(dataStore),
		Messages: NewMessages(dataStore),
		Recommender: NewRecommender(
			newEnrichedProvider(generator, catalog),
			newDirectProvider(generator),
		),
	}, nil
}

// ReservedAgent resolves the AI assistant identity, creating it on first
// call, and runs the placeholder-author repair exactly once per cold start.
// The repair is best-effort: its failure is logged, never escalated.
func (a *App) ReservedAgent() (domain.User, error) {
	agent, err := a.Users.EnsureReservedAgent()
	if err != nil {
		return domain.User{}, err
	}
	a.repairOnce.Do(func() {
		changed, repairErr := a.Messages.RepairAgentAuthors(agent.ID)
		if repairErr != nil {
			slog.Warn("agent message repair failed", "err", repairErr)
			return
		}
		if changed > 0 {
			slog.Info("reassigned placeholder ai messages", "count", changed, "agent_id", agent.ID)
		}
	})
	return agent, nil
}

func buildGenerator(cfg Config) (ai.TextGenerator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.GenerationProvider))
	if provider == "" {
		// Pick by available credentials.
		switch {
		case cfg.GeminiAPIKey != "":
			provider = "gemini"
		case cfg.OpenAIBaseURL != "":
			provider = "openai"
		case cfg.OllamaBaseURL != "":
			provider = "ollama"
		default:
			return nil, nil
		}
	}
	switch provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, nil
		}
		return ai.NewGeminiGenerator(cfg.GeminiAPIKey, cfg.GenerationModel)
	case "openai":
		if cfg.OpenAIBaseURL == "" {
			return nil, nil
		}
		return ai.NewOpenAICompatGenerator(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.GenerationModel), nil
	case "ollama":
		return ai.NewOllamaGenerator(cfg.OllamaBaseURL, cfg.GenerationModel), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", provider)
	}
}
