// Package main запускает HTTP-сервер Telegram-бота DEALHUNTER.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/dealhunter-bot/internal/catalog"
	"github.com/mmeshcher/dealhunter-bot/internal/config"
	"github.com/mmeshcher/dealhunter-bot/internal/dedup"
	"github.com/mmeshcher/dealhunter-bot/internal/handler"
	"github.com/mmeshcher/dealhunter-bot/internal/metrics"
	"github.com/mmeshcher/dealhunter-bot/internal/middleware"
	"github.com/mmeshcher/dealhunter-bot/internal/model"
	"github.com/mmeshcher/dealhunter-bot/internal/repository"
	"github.com/mmeshcher/dealhunter-bot/internal/service"
	"github.com/mmeshcher/dealhunter-bot/internal/telegram"
)

func main() {
	// .env необязателен: в контейнере переменные приходят из окружения.
	_ = godotenv.Load()

	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	sugar := logger.Sugar()

	if err := cfg.Validate(); err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := loadCatalog(ctx, cfg, logger)
	if err != nil {
		sugar.Fatalw("catalog initialization error", "error", err.Error())
	}

	sugar.Infow("catalog loaded", "categories", len(c.Categories), "deals", c.DealCount())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var dedupStore handler.Deduplicator
	if cfg.RedisURL != "" {
		rdb, err := dedup.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer rdb.Close()
		dedupStore = dedup.NewRedisStore(rdb, 0)
	}

	bot := telegram.NewClient(cfg.TelegramAPIURL, cfg.TelegramToken,
		telegram.WithLogger(logger, cfg.TelegramToken))

	if cfg.WebhookURL != "" {
		if err := bot.SetWebhook(ctx, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
			sugar.Fatalw("webhook registration error", "error", err.Error())
		}
		sugar.Infow("webhook registered", "url", cfg.WebhookURL)
	}

	svc := service.NewService(c, service.Settings{
		DisplayLimit: cfg.DisplayLimit,
		BotUsername:  cfg.BotUsername,
	}, m)

	h := handler.NewHandler(handler.Deps{
		Service:     svc,
		Bot:         bot,
		Dedup:       dedupStore,
		Logger:      logger,
		Secret:      middleware.NewWebhookSecret(cfg.WebhookSecret),
		Metrics:     m,
		Gatherer:    reg,
		BotUsername: cfg.BotUsername,
	})

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting dealhunter bot", "addr", cfg.RunAddress, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// loadCatalog читает каталог из файла или встроенного набора.
// Если задана база, каталог берётся из неё, а пустая база заполняется исходным каталогом.
func loadCatalog(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*model.Catalog, error) {
	var (
		source *model.Catalog
		err    error
	)
	if cfg.CatalogPath != "" {
		source, err = catalog.Load(cfg.CatalogPath)
	} else {
		source, err = catalog.Builtin()
	}
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURI == "" {
		return source, nil
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("database initialization: %w", err)
	}
	// Каталог неизменяем после загрузки, пул нужен только на старте.
	defer repo.Close()

	stored, err := repo.LoadCatalog(ctx)
	switch {
	case err == nil:
		return stored, nil
	case errors.Is(err, repository.ErrCatalogEmpty):
		logger.Info("database catalog is empty, seeding", zap.Int("deals", source.DealCount()))
		if err := repo.ReplaceCatalog(ctx, source); err != nil {
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
		return source, nil
	default:
		return nil, fmt.Errorf("load stored catalog: %w", err)
	}
}
