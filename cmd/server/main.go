package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"cinechat/internal/app"
	"cinechat/internal/config"
	"cinechat/internal/ratelimit"
	"cinechat/internal/server"
	"cinechat/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:        cfg.DatabaseURL,
		Redis:              redisClient,
		GenerationProvider: cfg.GenerationProvider,
		GenerationModel:    cfg.GenerationModel,
		GeminiAPIKey:       cfg.GeminiAPIKey,
		OpenAIBaseURL:      cfg.OpenAIBaseURL,
		OpenAIAPIKey:       cfg.OpenAIAPIKey,
		OllamaBaseURL:      cfg.OllamaBaseURL,
		TMDBAPIKey:         cfg.TMDBAPIKey,
	})
	if err != nil {
		logger.Error("failed to init app", "err", err)
		os.Exit(1)
	}

	// Resolve the AI assistant identity up front so the placeholder-author
	// repair runs at startup. Failure is logged, never fatal.
	if agent, err := appCore.ReservedAgent(); err != nil {
		logger.Warn("reserved agent bootstrap failed", "err", err)
	} else {
		logger.Info("reserved agent ready", "agent_id", agent.ID)
	}

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.SendRateLimit > 0 && redisClient != nil {
		window := time.Duration(cfg.SendRateWindowSeconds) * time.Second
		if window <= 0 {
			window = time.Minute
		}
		limiter, err = ratelimit.NewFixedWindowLimiter(redisClient, "cinechat:send", cfg.SendRateLimit, window)
		if err != nil {
			logger.Error("failed to init rate limiter", "err", err)
			os.Exit(1)
		}
	}

	coordinator := server.NewCoordinator(server.CoordinatorConfig{
		App:        appCore,
		Limiter:    limiter,
		ReplyDelay: time.Duration(cfg.AIReplyDelayMs) * time.Millisecond,
	})
	httpServer := server.New(server.Config{Coordinator: coordinator})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	slog.Info("cinechat server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
