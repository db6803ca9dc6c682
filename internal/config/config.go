package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ClassifierProvider identifies the similarity backend for the epic
// classifier. A typed set of recognized options, not ambient state.
type ClassifierProvider string

const (
	ProviderTFIDF     ClassifierProvider = "tfidf"
	ProviderOpenAI    ClassifierProvider = "openai"
	ProviderAnthropic ClassifierProvider = "anthropic"
	ProviderGoogle    ClassifierProvider = "google"
)

// ClassifierOptions configures the epic classifier. Injected at
// construction instead of read from a global settings table.
type ClassifierOptions struct {
	Provider        ClassifierProvider
	Model           string
	APIKey          string
	Temperature     float64
	MaxTokens       int
	Timeout         time.Duration
	ConfidenceFloor float64
	RatePerMinute   int
}

// BaselineOptions holds the statistical thresholds for baseline learning.
type BaselineOptions struct {
	CoVLowThreshold  float64
	CoVHighThreshold float64
	MinSampleSize    int
}

// ForecastOptions holds feature-flag uplift factors and output precision.
type ForecastOptions struct {
	BEIntegrationsUplift float64
	CustomThemeUplift    float64
	CustomDesignsUplift  float64
	UXResearchUplift     float64
	DefaultEpicHours     float64 // 0 disables the global fallback
	RoundDecimals        int
}

// Config holds the full application configuration.
type Config struct {
	Port     string
	GinMode  string
	LogLevel string
	LogJSON  bool

	// API auth: either a plain token or a bcrypt hash of it.
	TokenAPI     string
	TokenAPIHash string

	// Postgres
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime int // minutes
	DBConnMaxIdleTime int // minutes

	Classifier ClassifierOptions
	Baseline   BaselineOptions
	Forecast   ForecastOptions

	// Recompute job
	RecomputeSchedule string        // cron spec, empty disables
	LockMaxAge        time.Duration // stale-lock threshold
}

// ErrMissingToken indicates neither TOKEN_API nor TOKEN_API_HASH is set.
var ErrMissingToken = errors.New("TOKEN_API or TOKEN_API_HASH must be configured")

// Load reads configuration from the environment.
func Load() (*Config, error) {
	// .env may live next to the binary or at the project root
	_ = godotenv.Load()
	_ = godotenv.Load("../.env")

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogJSON:  getEnvBool("LOG_JSON", true),

		TokenAPI:     os.Getenv("TOKEN_API"),
		TokenAPIHash: os.Getenv("TOKEN_API_HASH"),

		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBUser:            getEnv("DB_USER", "postgres"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBName:            getEnv("DB_NAME", "epic_forecast"),
		DBSSLMode:         getEnv("DB_SSLMODE", "disable"),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
		DBConnMaxIdleTime: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 2),

		Classifier: ClassifierOptions{
			Provider:        ClassifierProvider(getEnv("CLASSIFIER_PROVIDER", string(ProviderTFIDF))),
			Model:           os.Getenv("CLASSIFIER_MODEL"),
			APIKey:          os.Getenv("CLASSIFIER_API_KEY"),
			Temperature:     getEnvFloat("CLASSIFIER_TEMPERATURE", 0.0),
			MaxTokens:       getEnvInt("CLASSIFIER_MAX_TOKENS", 1024),
			Timeout:         time.Duration(getEnvInt("CLASSIFIER_TIMEOUT_SEC", 20)) * time.Second,
			ConfidenceFloor: getEnvFloat("CLASSIFIER_CONFIDENCE_FLOOR", 0.5),
			RatePerMinute:   getEnvInt("CLASSIFIER_RATE_PER_MINUTE", 30),
		},

		Baseline: BaselineOptions{
			CoVLowThreshold:  getEnvFloat("BASELINE_COV_LOW", 0.3),
			CoVHighThreshold: getEnvFloat("BASELINE_COV_HIGH", 0.75),
			MinSampleSize:    getEnvInt("BASELINE_MIN_SAMPLE", 3),
		},

		Forecast: ForecastOptions{
			BEIntegrationsUplift: getEnvFloat("UPLIFT_BE_INTEGRATIONS", 1.25),
			CustomThemeUplift:    getEnvFloat("UPLIFT_CUSTOM_THEME", 1.15),
			CustomDesignsUplift:  getEnvFloat("UPLIFT_CUSTOM_DESIGNS", 1.20),
			UXResearchUplift:     getEnvFloat("UPLIFT_UX_RESEARCH", 1.10),
			DefaultEpicHours:     getEnvFloat("FORECAST_DEFAULT_EPIC_HOURS", 0),
			RoundDecimals:        getEnvInt("FORECAST_ROUND_DECIMALS", 2),
		},

		RecomputeSchedule: getEnv("RECOMPUTE_SCHEDULE", "0 3 * * *"),
		LockMaxAge:        time.Duration(getEnvInt("LOCK_MAX_AGE_MIN", 60)) * time.Minute,
	}

	if cfg.TokenAPI == "" && cfg.TokenAPIHash == "" {
		return nil, ErrMissingToken
	}

	switch cfg.Classifier.Provider {
	case ProviderTFIDF, ProviderOpenAI, ProviderAnthropic, ProviderGoogle:
	default:
		return nil, fmt.Errorf("unrecognized CLASSIFIER_PROVIDER %q", cfg.Classifier.Provider)
	}

	if cfg.Classifier.Provider != ProviderTFIDF && cfg.Classifier.APIKey == "" {
		return nil, fmt.Errorf("CLASSIFIER_API_KEY required for provider %q", cfg.Classifier.Provider)
	}

	if cfg.Classifier.ConfidenceFloor < 0 || cfg.Classifier.ConfidenceFloor > 1 {
		return nil, fmt.Errorf("CLASSIFIER_CONFIDENCE_FLOOR must be in [0,1], got %v", cfg.Classifier.ConfidenceFloor)
	}

	if cfg.Baseline.CoVLowThreshold >= cfg.Baseline.CoVHighThreshold {
		return nil, fmt.Errorf("BASELINE_COV_LOW (%v) must be below BASELINE_COV_HIGH (%v)",
			cfg.Baseline.CoVLowThreshold, cfg.Baseline.CoVHighThreshold)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
