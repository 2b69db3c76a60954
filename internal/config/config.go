package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/photosnap/forge/internal/inference"
	"github.com/photosnap/forge/internal/storage"
)

const (
	defaultListenAddr   = ":8080"
	defaultDBPath       = "forge.db"
	defaultInferenceURL = "https://inference.do-ai.run/v1/async-invoke"
	defaultModel        = "fal-ai/flux/schnell"
	defaultSpacesBucket = "photosnap-bucket"
	defaultSpacesRegion = "sgp1"

	envListenAddr   = "FORGE_LISTEN_ADDR"
	envDBPath       = "FORGE_DB_PATH"
	envLogLevel     = "FORGE_LOG_LEVEL"
	envInferenceURL = "FORGE_INFERENCE_URL"
	envDefaultModel = "FORGE_DEFAULT_MODEL"

	// Names shared with the DigitalOcean deployment environment.
	envModelAccessKey = "DO_MODEL_ACCESS_KEY"
	envPollInterval   = "POLL_INTERVAL"
	envPollTimeout    = "POLL_TIMEOUT"
	envSpacesBucket   = "SPACES_BUCKET"
	envSpacesRegion   = "SPACES_REGION"
	envSpacesEndpoint = "SPACES_ENDPOINT"
	envSpacesKey      = "DO_SPACES_KEY"
	envSpacesSecret   = "DO_SPACES_SECRET"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	InferenceURL   string
	ModelAccessKey string
	DefaultModel   string
	PollInterval   time.Duration
	PollTimeout    time.Duration

	Spaces storage.SpacesConfig
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:   defaultListenAddr,
		DBPath:       defaultDBPath,
		LogLevel:     slog.LevelInfo,
		InferenceURL: defaultInferenceURL,
		DefaultModel: defaultModel,
		PollInterval: inference.DefaultPollInterval,
		PollTimeout:  inference.DefaultPollTimeout,
		Spaces: storage.SpacesConfig{
			Bucket: defaultSpacesBucket,
			Region: defaultSpacesRegion,
		},
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envInferenceURL); v != "" {
		cfg.InferenceURL = v
	}
	cfg.ModelAccessKey = os.Getenv(envModelAccessKey)
	if v := os.Getenv(envDefaultModel); v != "" {
		cfg.DefaultModel = v
	}

	// POLL_INTERVAL is fractional seconds, POLL_TIMEOUT whole seconds.
	if v := os.Getenv(envPollInterval); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.PollInterval = time.Duration(f * float64(time.Second))
		}
	}
	if v := os.Getenv(envPollTimeout); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PollTimeout = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv(envSpacesBucket); v != "" {
		cfg.Spaces.Bucket = v
	}
	if v := os.Getenv(envSpacesRegion); v != "" {
		cfg.Spaces.Region = v
	}
	cfg.Spaces.Endpoint = fmt.Sprintf("https://%s.digitaloceanspaces.com", cfg.Spaces.Region)
	if v := os.Getenv(envSpacesEndpoint); v != "" {
		cfg.Spaces.Endpoint = v
	}
	cfg.Spaces.Key = os.Getenv(envSpacesKey)
	cfg.Spaces.Secret = os.Getenv(envSpacesSecret)

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
