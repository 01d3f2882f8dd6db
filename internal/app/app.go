// Package app is the composition root: it builds the full response
// pipeline from configuration and owns the lifecycle of every shared
// resource (model provider, connection pool, trace exporter).
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/beatsync/beatsync/db"
	"github.com/beatsync/beatsync/internal/capability"
	"github.com/beatsync/beatsync/internal/config"
	"github.com/beatsync/beatsync/internal/intent"
	"github.com/beatsync/beatsync/internal/knowledge"
	"github.com/beatsync/beatsync/internal/log"
	"github.com/beatsync/beatsync/internal/observability"
	"github.com/beatsync/beatsync/internal/provider"
	"github.com/beatsync/beatsync/internal/respond"
	"github.com/beatsync/beatsync/internal/retrieval"
)

// Provider rate limiting shared by every model call.
const (
	providerRatePerSec = 2
	providerRateBurst  = 4
)

// otelShutdownTimeout bounds the final span flush on close.
const otelShutdownTimeout = 5 * time.Second

// App holds the assembled pipeline. Create with Setup, release with
// Close.
type App struct {
	Config    *config.Config
	Logger    log.Logger
	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	Pool      *pgxpool.Pool
	Provider  *provider.Client
	Knowledge *knowledge.Store
	Responder *respond.Responder

	otelShutdown func(context.Context) error
}

// Setup builds the application. Tracing is registered before Genkit
// initialization so model spans reach the exporter. On any failure the
// partially built app is torn down before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.OTLPEndpoint,
			ServiceName: "beatsync",
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
		a.otelShutdown = shutdown
	}

	g, embedder, err := provider.NewGenkit(ctx, cfg.EmbedderModel)
	if err != nil {
		return nil, fmt.Errorf("initializing model provider: %w", err)
	}
	a.Genkit = g
	a.Embedder = embedder

	limiter := rate.NewLimiter(rate.Limit(providerRatePerSec), providerRateBurst)
	client, err := provider.New(g, limiter, logger)
	if err != nil {
		return nil, fmt.Errorf("creating provider client: %w", err)
	}
	a.Provider = client

	if err := db.Migrate(cfg.ConnString(), logger); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	a.Pool = pool

	store, err := knowledge.New(knowledge.NewPgxQuerier(pool), embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}
	a.Knowledge = store

	responder, err := buildResponder(cfg, client, store, logger)
	if err != nil {
		return nil, err
	}
	a.Responder = responder

	return a, nil
}

// buildResponder assembles the per-turn pipeline around the shared
// provider client and knowledge store.
func buildResponder(cfg *config.Config, client *provider.Client, store *knowledge.Store, logger log.Logger) (*respond.Responder, error) {
	intentModelName := cfg.IntentModel
	if intentModelName == "" {
		intentModelName = cfg.Question.ModelName
	}
	intentModel := config.ResponseConfig{
		Provider:  cfg.Question.Provider,
		ModelName: intentModelName,
	}.FullModelName()

	classifier := intent.New(client, intentModel, logger)

	pipeline := retrieval.New(client, store, retrieval.Config{
		Model:         intentModel,
		Temperature:   cfg.Question.Temperature,
		TopK:          cfg.TopK,
		ContextBudget: cfg.ContextBudget,
	}, logger)

	music := capability.NewMusicClient(cfg.MusicBaseURL, cfg.MusicTimeout(), logger)

	responder, err := respond.New(classifier, pipeline, client, music, respond.Config{
		Question:             cfg.Question,
		Hostile:              cfg.Hostile,
		Random:               cfg.Random,
		WordCutoff:           cfg.WordCutoff,
		HistoryContextLength: cfg.HistoryContextLength,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating responder: %w", err)
	}
	return responder, nil
}

// Close releases all resources in reverse construction order.
func (a *App) Close() error {
	var errs []error

	if a.Pool != nil {
		a.Pool.Close()
		a.Pool = nil
	}

	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
		if err := a.otelShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down tracing: %w", err))
		}
		cancel()
		a.otelShutdown = nil
	}

	return errors.Join(errs...)
}
