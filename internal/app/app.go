package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"inkpress/backend/features/content"
	"inkpress/backend/features/generation"
	"inkpress/backend/features/job"
	"inkpress/backend/features/publishing"
	"inkpress/backend/features/stats"
	"inkpress/backend/internal/adapter/gemini"
	wstore "inkpress/backend/internal/adapter/weaviate"
	"inkpress/backend/internal/adapter/wordpress"
	"inkpress/backend/internal/config"
	"inkpress/backend/internal/middleware"
	"inkpress/backend/internal/queue"
	"inkpress/backend/internal/settings"
	"inkpress/backend/internal/worker"
)

// Database is what New needs from the SQL handle; it keeps the signature
// mockable with sqlmock while repositories still receive the *sql.DB.
type Database interface {
	PingContext(ctx context.Context) error
	Close() error
}

type App struct {
	Handler            http.Handler
	GenerationPool     *queue.Pool
	PublishingPool     *queue.Pool
	CompletionConsumer *worker.CompletionConsumer

	port int
}

func New(
	cfg *config.Config,
	db Database,
	articles *wstore.Store,
	eventPub queue.EventPublisher,
	logger *slog.Logger,
) (*App, error) {

	sqlDB := db.(*sql.DB)

	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(sqlDB)
	settingsService := settings.NewService(settingsRepo)
	seedSettings(cfg, settingsService)
	settingsHandler := settings.NewHandler(settingsService)

	// Adapters: Dynamic
	geminiClient := gemini.NewClient(settingsService)
	remoteTimeout := time.Duration(cfg.RemoteTimeoutSecs) * time.Second
	wpClient := wordpress.NewDynamicClient(settingsService, remoteTimeout)

	// Job store + worker pools
	store := queue.NewPostgresStore(sqlDB)

	genPipeline := generation.NewPipeline(geminiClient, remoteTimeout)
	genPool := queue.NewPool(queue.PoolConfig{
		Queue:        config.QueueGeneration,
		Concurrency:  cfg.GenerationConcurrency,
		MaxPerWindow: cfg.GenerationMaxPerWindow,
		Window:       time.Duration(cfg.GenerationWindowSeconds) * time.Second,
		MaxAttempts:  cfg.MaxAttempts,
		BaseDelay:    time.Duration(cfg.RetryBaseDelayMS) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.RetryMaxDelayMS) * time.Millisecond,
		PollInterval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}, store, genPipeline.Run, eventPub)

	pubPipeline := publishing.NewPipeline(wpClient, remoteTimeout)
	pubPool := queue.NewPool(queue.PoolConfig{
		Queue:        config.QueuePublishing,
		Concurrency:  cfg.PublishingConcurrency,
		MaxPerWindow: cfg.PublishingMaxPerWindow,
		Window:       time.Duration(cfg.PublishingWindowSeconds) * time.Second,
		MaxAttempts:  cfg.MaxAttempts,
		BaseDelay:    time.Duration(cfg.RetryBaseDelayMS) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.RetryMaxDelayMS) * time.Millisecond,
		PollInterval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}, store, pubPipeline.Run, eventPub)

	// Features
	generationService := generation.NewService(genPool)
	generationHandler := generation.NewHandler(generationService)

	publishingService := publishing.NewService(pubPool)
	publishingHandler := publishing.NewHandler(publishingService)

	jobService := job.NewService(store)
	jobHandler := job.NewHandler(jobService)

	statsHandler := stats.NewHandler(store, articles)

	contentService := content.NewService(geminiClient, articles)
	contentHandler := content.NewHandler(contentService)

	// Worker (Completion Consumer)
	completionConsumer := worker.NewCompletionConsumer(geminiClient, articles, publishingService)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /generate", middleware.CorrelationID(enableCORS(generationHandler.Create)))
	mux.Handle("POST /publish", middleware.CorrelationID(enableCORS(publishingHandler.Create)))
	mux.Handle("GET /jobs/{id}", middleware.CorrelationID(enableCORS(jobHandler.Get)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))
	mux.Handle("GET /content/similar", middleware.CorrelationID(enableCORS(contentHandler.Similar)))

	mux.Handle("GET /settings", middleware.CorrelationID(enableCORS(settingsHandler.GetSettings)))
	mux.Handle("PUT /settings", middleware.CorrelationID(enableCORS(settingsHandler.UpdateSettings)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:            mux,
		GenerationPool:     genPool,
		PublishingPool:     pubPool,
		CompletionConsumer: completionConsumer,
		port:               cfg.ServerPort,
	}, nil
}

// seedSettings copies credentials from the environment into the settings
// row on first boot, so a configured deployment works before anyone touches
// PUT /settings.
func seedSettings(cfg *config.Config, svc *settings.Service) {
	ctx := context.Background()
	set, err := svc.Get(ctx)
	if err != nil {
		slog.Warn("failed to fetch settings for seeding", "error", err)
		return
	}

	changed := false
	if set.GeminiAPIKey == "" && cfg.GeminiAPIKey != "" {
		set.GeminiAPIKey = cfg.GeminiAPIKey
		changed = true
	}
	if set.WordPressURL == "" && cfg.WordPressURL != "" {
		set.WordPressURL = cfg.WordPressURL
		changed = true
	}
	if set.WordPressToken == "" && cfg.WordPressToken != "" {
		set.WordPressToken = cfg.WordPressToken
		changed = true
	}
	if !changed {
		return
	}

	if err := svc.Update(ctx, set); err != nil {
		slog.Warn("failed to seed settings", "error", err)
	} else {
		slog.Info("seeded settings from environment")
	}
}

// Run serves HTTP until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
