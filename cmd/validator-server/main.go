package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/tendant/scene-validator/internal/analyzer"
	"github.com/tendant/scene-validator/internal/batch"
	"github.com/tendant/scene-validator/internal/config"
	"github.com/tendant/scene-validator/internal/durable"
	"github.com/tendant/scene-validator/internal/handlers"
	"github.com/tendant/scene-validator/internal/pipeline"
	"github.com/tendant/scene-validator/internal/probe"
	"github.com/tendant/scene-validator/internal/profile"
	"github.com/tendant/scene-validator/internal/report"
)

func main() {
	cfg := config.Load()

	// Shared Postgres handle, used by the profile store and report store
	// when DATABASE_URL is set.
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
	}

	// Profile store: Postgres when a database is configured, YAML directory
	// otherwise. PROFILE_DIR is required in the latter case.
	var profiles profile.Store
	switch {
	case db != nil:
		store, err := profile.NewPostgresStore(db)
		if err != nil {
			log.Fatalf("Failed to initialize profile store: %v", err)
		}
		profiles = store
		log.Printf("✓ Profile store: postgres")
	case cfg.ProfileDir != "":
		store, err := profile.NewYAMLStore(cfg.ProfileDir)
		if err != nil {
			log.Fatalf("Failed to initialize profile store: %v", err)
		}
		profiles = store
		log.Printf("✓ Profile store: yaml (%s)", cfg.ProfileDir)
	default:
		log.Fatalf("Either DATABASE_URL or PROFILE_DIR is required")
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		profiles = profile.NewCache(profiles, client, cfg.ProfileCacheTTL)
		log.Printf("✓ Profile cache: redis (%s, ttl=%s)", cfg.RedisAddr, cfg.ProfileCacheTTL)
	}

	// Technical probe
	prober := probe.NewFFProbe(cfg.FFprobePath)

	// Content analyzer (required for the server; the batch CLI can run
	// without one)
	if cfg.GeminiAPIKey == "" {
		log.Fatalf("GEMINI_API_KEY is required")
	}
	frames := analyzer.NewFFmpegExtractor(cfg.FFmpegPath)
	gemini, err := analyzer.NewGemini(analyzer.GeminiConfig{
		Endpoint:  cfg.GeminiEndpoint,
		APIKey:    cfg.GeminiAPIKey,
		Model:     cfg.GeminiModel,
		MaxFrames: cfg.AnalysisFrames,
	}, frames)
	if err != nil {
		log.Fatalf("Failed to initialize analyzer: %v", err)
	}

	// Report sinks
	sinks := []report.Sink{&report.LogSink{}}
	var reports handlers.ReportGetter
	if db != nil {
		store, err := report.NewPostgresStore(db)
		if err != nil {
			log.Fatalf("Failed to initialize report store: %v", err)
		}
		sinks = append(sinks, store)
		reports = store
		log.Printf("✓ Report store: postgres")
	}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := report.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatalf("Failed to initialize kafka sink: %v", err)
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		log.Printf("✓ Report sink: kafka (topic=%s)", cfg.KafkaTopic)
	}

	p := pipeline.New(pipeline.Deps{
		Profiles: profiles,
		Prober:   prober,
		Analyzer: gemini,
		Sink:     report.Multi(sinks...),
	}, pipeline.Config{
		ProbeTimeout:        cfg.ProbeTimeout,
		AnalysisTimeout:     cfg.AnalysisTimeout,
		AnalysisMaxAttempts: cfg.AnalysisMaxAttempts,
	})

	coordinator := batch.New(p, profiles)

	// Durable execution is optional. Without it the async endpoint
	// returns 503.
	var durableRT *durable.Runtime
	if cfg.DBOSDatabaseURL != "" {
		durableRT, err = durable.NewRuntime(context.Background(), durable.Config{
			DatabaseURL: cfg.DBOSDatabaseURL,
		}, p)
		if err != nil {
			log.Fatalf("Failed to initialize durable runtime: %v", err)
		}
		if err := durableRT.Launch(); err != nil {
			log.Fatalf("Failed to launch durable runtime: %v", err)
		}
		defer durableRT.Shutdown(10 * time.Second)
		log.Printf("✓ Durable runtime initialized")
	}

	handler := handlers.New(p, coordinator, profiles, reports, durableRT)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Scene validator starting on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
