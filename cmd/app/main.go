// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"telegram-ai-autoposter/internal/application"
	"telegram-ai-autoposter/internal/config"
	"telegram-ai-autoposter/internal/domain/ports/adapter"
	"telegram-ai-autoposter/internal/domain/ports/repository"
	aiAdapters "telegram-ai-autoposter/internal/infra/adapters/ai"
	"telegram-ai-autoposter/internal/infra/adapters/publisher"
	tele "telegram-ai-autoposter/internal/infra/adapters/telegram"
	pg "telegram-ai-autoposter/internal/infra/db/postgres"
	"telegram-ai-autoposter/internal/infra/db/sqlite"
	httpapi "telegram-ai-autoposter/internal/infra/http"
	"telegram-ai-autoposter/internal/infra/i18n"
	"telegram-ai-autoposter/internal/infra/logging"
	"telegram-ai-autoposter/internal/infra/metrics"
	red "telegram-ai-autoposter/internal/infra/redis"
	"telegram-ai-autoposter/internal/infra/worker"
	"telegram-ai-autoposter/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, insecure cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("autoposter stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().
		Str("version", version).
		Str("bot_token", logging.Redact(cfg.Bot.Token, cfg.Runtime.Dev)).
		Str("mode", cfg.Bot.Mode).
		Str("db_driver", cfg.Database.Driver).
		Msg("starting autoposter")

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	// ---- Post store ----
	posts, closeStore, err := openStore(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// ---- Generator chain ----
	gen, err := buildGenerator(ctx, cfg.AI, logger)
	if err != nil {
		return err
	}

	// ---- Publishers ----
	hc := &http.Client{Timeout: cfg.Publishers.Timeout}
	coordinator := publisher.NewCoordinator(publisher.NewSet(cfg.Publishers, hc), publisher.CoordinatorOptions{
		Concurrency:   cfg.Publishers.Concurrency,
		RatePerMinute: cfg.Publishers.RatePerMinute,
		Timeout:       cfg.Publishers.Timeout,
		Retry:         cfg.Retry.Publish,
	}, logger)
	logger.Info().Interface("platforms", coordinator.Configured()).Msg("publishers configured")

	// ---- Use case + facade ----
	postUC := usecase.NewPostUseCase(posts, gen, coordinator, usecase.PostOptions{
		MaxTopicLength:    cfg.Posts.MaxTopicLength,
		ListLimit:         cfg.Posts.ListLimit,
		GenerationRetry:   cfg.Retry.Generation,
		StoreRetry:        cfg.Retry.Store,
		GenerationTimeout: cfg.AI.Timeout * time.Duration(cfg.Retry.Generation.Retries+1),
		PublishTimeout:    cfg.Publishers.Timeout*time.Duration(cfg.Retry.Publish.Retries+1) + time.Minute,
	}, logger)

	translator, err := i18n.NewTranslator(i18n.LocalesFS, i18n.DefaultLanguage)
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	defaults, _ := cfg.Publishers.Defaults()
	facade := application.NewBotFacade(postUC, red.NewStateRepo(redisClient, red.DefaultStateTTL), translator,
		application.FacadeOptions{DefaultPlatforms: defaults, PreviewLength: cfg.Posts.PreviewLength}, logger)

	// ---- Telegram ----
	pool := worker.NewPool(cfg.Bot.Workers, cfg.Bot.QueueSize, logger)
	pool.Start(ctx)
	defer pool.Stop()

	bot, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, facade, translator, red.NewRateLimiter(redisClient), pool, logger)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if err := bot.SetMenuCommands(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to set bot commands")
	}

	webhookSecret := ""
	switch cfg.Bot.Mode {
	case "webhook":
		webhookSecret = cfg.Bot.WebhookSecret
		if err := bot.SetWebhook(ctx); err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
	default:
		// getUpdates is refused while a webhook is registered
		if err := bot.DeleteWebhook(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to delete webhook before polling")
		}
		go func() {
			if err := bot.StartPolling(ctx); err != nil {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
	}

	// ---- HTTP ----
	srv := httpapi.NewServer(httpapi.ServerOptions{
		HTTP:          cfg.HTTP,
		WebhookSecret: webhookSecret,
		PreviewLength: cfg.Posts.PreviewLength,
		SecureCookie:  !cfg.Runtime.Dev,
	}, bot, bot, postUC, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
	}

	logger.Info().Msg("shutting down")
	bot.StopPolling()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	return nil
}

// openStore opens the configured post store. Postgres reads go through the Redis cache.
func openStore(ctx context.Context, cfg *config.Config, cache red.RedisClient, logger *zerolog.Logger) (repository.PostRepository, func(), error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		return sqlite.NewPostRepo(db), func() { _ = db.Close() }, nil
	default:
		pool, err := pg.NewPgxPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := pg.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		repo := pg.NewPostgresPostRepo(pool, pg.NewTxManager(pool))
		return pg.NewPostRepoCacheDecorator(repo, cache, cfg.Redis.TTL, logger), pool.Close, nil
	}
}

// buildGenerator assembles provider, then fallbacks, each metered, behind a concurrency limit.
func buildGenerator(ctx context.Context, cfg config.AIConfig, logger *zerolog.Logger) (adapter.ContentGenerator, error) {
	var chain []adapter.ContentGenerator
	for _, name := range append([]string{cfg.Provider}, cfg.Fallback...) {
		var g adapter.ContentGenerator
		switch strings.ToLower(name) {
		case "openai":
			o, err := aiAdapters.NewOpenAIGenerator(aiAdapters.OpenAIOptions{
				Name:                  "openai",
				APIKey:                cfg.OpenAIKey,
				BaseURL:               cfg.OpenAIBaseURL,
				Model:                 cfg.DefaultModel,
				MaxTokens:             cfg.MaxTokens,
				Temperature:           cfg.Temperature,
				RegenerateTemperature: cfg.RegenerateTemperature,
				Timeout:               cfg.Timeout,
			})
			if err != nil {
				return nil, fmt.Errorf("openai generator: %w", err)
			}
			g = o
		case "gemini":
			gm, err := aiAdapters.NewGeminiGenerator(ctx, aiAdapters.GeminiOptions{
				APIKey:                cfg.GeminiKey,
				BaseURL:               cfg.GeminiURL,
				Model:                 cfg.GeminiModel,
				MaxTokens:             cfg.MaxTokens,
				Temperature:           cfg.Temperature,
				RegenerateTemperature: cfg.RegenerateTemperature,
			})
			if err != nil {
				return nil, fmt.Errorf("gemini generator: %w", err)
			}
			g = gm
		case "noop":
			g = aiAdapters.NewNoopGenerator(2 * time.Second)
		default:
			return nil, fmt.Errorf("unknown ai provider %q", name)
		}
		chain = append(chain, aiAdapters.NewMeteredGenerator(g, logger))
	}
	gen := aiAdapters.NewLimitedGenerator(aiAdapters.NewFallbackGenerator(chain...), cfg.ConcurrentLimit)
	logger.Info().Str("generator", gen.Name()).Msg("content generator ready")
	return gen, nil
}
