// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/raine/product-evaluator/internal/correction"
	"github.com/raine/product-evaluator/internal/dispatch"
)

const (
	AppName     = "product-evaluator"
	EnvFileName = "config.env"
)

// Provider names accepted in PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	configPath := filepath.Join(configBase, AppName, EnvFileName)
	_ = godotenv.Load(configPath)
}

// Config is the resolved runtime configuration.
type Config struct {
	Provider string

	GeminiAPIKey string
	GeminiModel  string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	Dispatch   dispatch.Policy
	Correction correction.Policy

	BotToken       string
	AdminID        int64
	AllowedUserIDs []int64
	DBPath         string
	CacheMaxAge    time.Duration
	MetricsAddr    string // Empty disables the metrics endpoint
}

// Credential returns the API key of the selected provider.
func (c *Config) Credential() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

// CheckRequired returns the names of required keys that are not set for the
// bot. The provider credential is not listed: a missing credential is
// reported per evaluation instead of failing start-up.
func CheckRequired(getenv func(string) string) []string {
	var missing []string
	for _, key := range []string{"BOT_TOKEN", "ADMIN_TELEGRAM_ID"} {
		if strings.TrimSpace(getenv(key)) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration using getenv, which makes it testable.
func LoadFrom(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}

	cfg := &Config{
		Provider:      strings.ToLower(r.str("PROVIDER", ProviderGemini)),
		GeminiAPIKey:  r.str("GEMINI_API_KEY", ""),
		GeminiModel:   r.str("GEMINI_MODEL", ""),
		OpenAIAPIKey:  r.str("OPENAI_API_KEY", ""),
		OpenAIBaseURL: r.str("OPENAI_BASE_URL", ""),
		OpenAIModel:   r.str("OPENAI_MODEL", ""),
		BotToken:      r.str("BOT_TOKEN", ""),
		DBPath:        r.str("DB_PATH", "evaluations.db"),
		MetricsAddr:   r.str("METRICS_ADDR", ""),
	}

	cfg.Dispatch = dispatch.DefaultPolicy()
	cfg.Dispatch.AttemptTimeout = r.duration("ATTEMPT_TIMEOUT", cfg.Dispatch.AttemptTimeout)
	cfg.Dispatch.MaxAttempts = r.int("MAX_ATTEMPTS", cfg.Dispatch.MaxAttempts)
	cfg.Dispatch.RetryDelay = r.duration("RETRY_DELAY", cfg.Dispatch.RetryDelay)
	cfg.Dispatch.MaxRetryAfter = r.duration("MAX_RETRY_AFTER", cfg.Dispatch.MaxRetryAfter)

	cfg.Correction = correction.DefaultPolicy()
	cfg.Correction.PremiumCoefficient = r.float("PREMIUM_COEFFICIENT", cfg.Correction.PremiumCoefficient)
	if preset := r.str("SATURATION_PRESET", ""); preset != "" {
		thresholds, err := correction.SaturationPreset(preset)
		if err != nil {
			r.fail("SATURATION_PRESET", err)
		}
		cfg.Correction.Saturation = thresholds
	}

	cfg.CacheMaxAge = r.duration("CACHE_MAX_AGE", 24*time.Hour)
	cfg.AdminID = r.int64("ADMIN_TELEGRAM_ID", 0)
	cfg.AllowedUserIDs = r.int64s("ALLOWED_USER_IDS")

	if r.err != nil {
		return nil, r.err
	}

	switch cfg.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return nil, fmt.Errorf("invalid PROVIDER %q (want %s or %s)", cfg.Provider, ProviderGemini, ProviderOpenAI)
	}
	if err := cfg.Dispatch.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dispatch settings: %w", err)
	}
	if err := cfg.Correction.Validate(); err != nil {
		return nil, fmt.Errorf("invalid correction settings: %w", err)
	}
	return cfg, nil
}

// reader keeps the first parse error so Load can report it once.
type reader struct {
	getenv func(string) string
	err    error
}

func (r *reader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return d
}

func (r *reader) int(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return n
}

func (r *reader) int64(key string, def int64) int64 {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return f
}

func (r *reader) int64s(key string) []int64 {
	var out []int64
	for _, part := range strings.Split(r.str(key, ""), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			r.fail(key, err)
			return nil
		}
		out = append(out, n)
	}
	return out
}
