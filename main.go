package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/curiobot/curio/internal/ai"
	"github.com/curiobot/curio/internal/cache"
	"github.com/curiobot/curio/internal/config"
	"github.com/curiobot/curio/internal/curator"
	"github.com/curiobot/curio/internal/scheduler"
	"github.com/curiobot/curio/internal/store"
	"github.com/curiobot/curio/internal/telegram"
	"github.com/curiobot/curio/internal/verifier"
)

func main() {
	cfg := config.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	domains := verifier.DefaultDomainLists()
	if cfg.DomainsFile != "" {
		domains, err = verifier.LoadDomainLists(cfg.DomainsFile)
		if err != nil {
			slog.Error("failed to load domain lists", "file", cfg.DomainsFile, "error", err)
			os.Exit(1)
		}
	}

	verifyCache := cache.New(cfg.VerifyCacheTTL)
	defer verifyCache.Close()

	links := verifier.New(domains, verifyCache)
	provider := ai.NewOpenAIClient(cfg.OpenAIAPIKey)
	pipeline := curator.New(provider, links)

	bot, err := telegram.NewBot(cfg.TelegramToken, cfg.TelegramWebhookURL, cfg.ServerPort, pipeline, db, cfg.DefaultTags)
	if err != nil {
		slog.Error("failed to create telegram bot", "error", err)
		os.Exit(1)
	}

	if err := bot.Start(ctx); err != nil {
		slog.Error("failed to start telegram bot", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(bot, db)
	if err := sched.Start(ctx, cfg.DeliveryCron); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	slog.Info("curio is running")
	<-ctx.Done()

	slog.Info("shutting down")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := bot.Stop(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("curio stopped gracefully")
}
