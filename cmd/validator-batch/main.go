package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tendant/scene-validator/internal/analyzer"
	"github.com/tendant/scene-validator/internal/batch"
	"github.com/tendant/scene-validator/internal/config"
	"github.com/tendant/scene-validator/internal/pipeline"
	"github.com/tendant/scene-validator/internal/probe"
	"github.com/tendant/scene-validator/internal/profile"
	"github.com/tendant/scene-validator/internal/report"
	"github.com/tendant/scene-validator/pkg/validation"
)

// Standalone batch runner for validating a manifest of scenes from the
// command line. No server, database, or broker needed; reports go to
// stdout. Content analysis runs only when GEMINI_API_KEY is set.
func main() {
	var (
		manifestPath = flag.String("scenes", "", "path to a JSON manifest of scene descriptors (required)")
		profileDir   = flag.String("profiles", "", "directory of YAML validation profiles (defaults to PROFILE_DIR)")
		profileID    = flag.String("profile", "", "validation profile id applied to the batch (required)")
		concurrency  = flag.Int("concurrency", 0, "max scenes validated at once (0 = default)")
	)
	flag.Parse()

	if *manifestPath == "" || *profileID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	if *profileDir == "" {
		*profileDir = cfg.ProfileDir
	}
	if *profileDir == "" {
		log.Fatalf("A profile directory is required (-profiles or PROFILE_DIR)")
	}

	scenes, err := loadManifest(*manifestPath)
	if err != nil {
		log.Fatalf("Failed to load manifest: %v", err)
	}
	log.Printf("Loaded %d scenes from %s", len(scenes), *manifestPath)

	profiles, err := profile.NewYAMLStore(*profileDir)
	if err != nil {
		log.Fatalf("Failed to initialize profile store: %v", err)
	}

	var contentAnalyzer analyzer.Analyzer = analyzer.Disabled{}
	if cfg.GeminiAPIKey != "" {
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
		contentAnalyzer = gemini
	} else {
		log.Printf("GEMINI_API_KEY not set, content analysis disabled")
	}

	p := pipeline.New(pipeline.Deps{
		Profiles: profiles,
		Prober:   probe.NewFFProbe(cfg.FFprobePath),
		Analyzer: contentAnalyzer,
		Sink:     &report.LogSink{},
	}, pipeline.Config{
		ProbeTimeout:        cfg.ProbeTimeout,
		AnalysisTimeout:     cfg.AnalysisTimeout,
		AnalysisMaxAttempts: cfg.AnalysisMaxAttempts,
	})

	coordinator := batch.New(p, profiles)

	// Cancel in-flight validations on Ctrl-C
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := coordinator.RunBatch(ctx, scenes, *profileID, *concurrency)
	if err != nil {
		log.Fatalf("Batch failed: %v", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(out))
}

func loadManifest(path string) ([]validation.SceneDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var scenes []validation.SceneDescriptor
	if err := json.Unmarshal(data, &scenes); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return scenes, nil
}
