package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/p-n-ai/little-star/internal/ai"
	"github.com/p-n-ai/little-star/internal/api"
	"github.com/p-n-ai/little-star/internal/content"
	"github.com/p-n-ai/little-star/internal/narration"
	"github.com/p-n-ai/little-star/internal/platform/cache"
	"github.com/p-n-ai/little-star/internal/platform/config"
	"github.com/p-n-ai/little-star/internal/platform/database"
	"github.com/p-n-ai/little-star/internal/results"
	"github.com/p-n-ai/little-star/internal/session"
	"github.com/p-n-ai/little-star/internal/stream"
)

const sweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := build(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.close()

	srv := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:     a.handler,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: event streams stay open for the life of a session.
		IdleTimeout: 60 * time.Second,
	}

	go a.sweep(ctx, cfg.Session.IdleTimeout)

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "ai", cfg.HasAIProvider(), "tts", cfg.TTS.GoogleAPIKey != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	// Ending the sessions first closes their event streams.
	a.registry.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newLogger returns a JSON logger, or a text logger for local development. Text is colored
// only when w is a terminal.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if cfg.Format == "text" {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  cfg.AddSource,
			TimeFormat: time.RFC3339,
			NoColor:    !isTerminal(w),
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

type app struct {
	handler  http.Handler
	registry *session.Registry
	closers  []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// sweep ends idle sessions until ctx is done.
func (a *app) sweep(ctx context.Context, idle time.Duration) {
	ticker := time.NewTicker(min(sweepInterval, idle))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.registry.Sweep(idle)
		}
	}
}

// build wires the service. Postgres, Redis and the Google credentials are optional; a
// configured dependency that cannot be reached fails startup.
func build(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	checks := make(map[string]api.HealthChecker)

	store, err := loadStore(cfg.ContentPath)
	if err != nil {
		return nil, err
	}

	var c *cache.Cache
	if cfg.Cache.URL != "" {
		c, err = cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting to cache: %w", err)
		}
		a.closers = append(a.closers, func() { c.Close() })
		checks["cache"] = c
	}

	var history results.Logger = results.NewMemoryLogger()
	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database.URL, database.Options{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: database.DefaultOptions().MaxConnLifetime,
			MaxConnIdleTime: database.DefaultOptions().MaxConnIdleTime,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		pg := results.NewPostgresLogger(db.Pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			a.close()
			return nil, err
		}
		history = pg
		checks["database"] = db
	}

	// A nil completer makes every generated lesson fail with the missing-key message.
	var completer ai.Completer
	if cfg.HasAIProvider() {
		router := ai.NewRouter()
		router.Register("google", ai.NewGoogleProvider(cfg.AI.Google.APIKey, ai.WithGoogleModel(cfg.AI.Google.Model)))
		completer = router
		checks["ai"] = router
	}

	budget := ai.NewInMemoryBudget(cfg.AI.SessionTokenBudget)
	fetchOpts := []content.FetcherOption{
		content.WithBudget(budget),
		content.WithModel(cfg.AI.Google.Model),
	}
	if c != nil {
		fetchOpts = append(fetchOpts, content.WithLessonCache(c, cfg.Cache.LessonTTL))
	}

	hub := stream.NewHub()
	a.registry = session.NewRegistry(session.Deps{
		Store:     store,
		Fetcher:   content.NewFetcher(completer, fetchOpts...),
		Results:   history,
		Publisher: hub,
	}, session.WithForgetter(budget), session.WithForgetter(hub))

	var tts api.Synthesizer
	if cfg.TTS.GoogleAPIKey != "" {
		var ttsOpts []narration.TTSOption
		if c != nil {
			ttsOpts = append(ttsOpts, narration.WithAudioCache(c))
		}
		tts = narration.NewCloudTTS(cfg.TTS.GoogleAPIKey, ttsOpts...)
	}

	a.handler = api.NewRouter(api.Deps{
		Registry:       a.registry,
		Store:          store,
		Hub:            hub,
		TTS:            tts,
		Checks:         checks,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         slog.Default(),
	})
	return a, nil
}

func loadStore(dir string) (*content.Store, error) {
	store, err := content.NewStoreFromDir(dir)
	if err != nil {
		return nil, fmt.Errorf("loading content from %s: %w", dir, err)
	}
	return store, nil
}
