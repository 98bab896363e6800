package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full service configuration, read from the environment.
type Config struct {
	HTTPAddr string

	// Profile resolution
	ProfileDir      string
	DatabaseURL     string
	RedisAddr       string
	ProfileCacheTTL time.Duration

	// Report sinks
	KafkaBrokers []string
	KafkaTopic   string

	// Adapters
	FFprobePath    string
	FFmpegPath     string
	GeminiAPIKey   string
	GeminiModel    string
	GeminiEndpoint string
	AnalysisFrames int

	// Pipeline tuning
	ProbeTimeout        time.Duration
	AnalysisTimeout     time.Duration
	AnalysisMaxAttempts int
	MaxConcurrency      int

	// Durable execution
	DBOSDatabaseURL string
}

// Load reads configuration, loading a .env file first if one exists.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr: envStr("HTTP_ADDR", ":8080"),

		ProfileDir:      os.Getenv("PROFILE_DIR"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		ProfileCacheTTL: envDuration("PROFILE_CACHE_TTL", 5*time.Minute),

		KafkaBrokers: envList("KAFKA_BROKERS"),
		KafkaTopic:   envStr("KAFKA_TOPIC", "scene-validation-reports"),

		FFprobePath:    envStr("FFPROBE_PATH", "ffprobe"),
		FFmpegPath:     envStr("FFMPEG_PATH", "ffmpeg"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    envStr("GEMINI_MODEL", "gemini-1.5-pro-latest"),
		GeminiEndpoint: os.Getenv("GEMINI_ENDPOINT"),
		AnalysisFrames: envInt("ANALYSIS_FRAMES", 5),

		ProbeTimeout:        envDuration("PROBE_TIMEOUT", 30*time.Second),
		AnalysisTimeout:     envDuration("ANALYSIS_TIMEOUT", 120*time.Second),
		AnalysisMaxAttempts: envInt("ANALYSIS_MAX_ATTEMPTS", 3),
		MaxConcurrency:      envInt("MAX_CONCURRENCY", 4),

		DBOSDatabaseURL: os.Getenv("DBOS_SYSTEM_DATABASE_URL"),
	}
}

func envStr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
