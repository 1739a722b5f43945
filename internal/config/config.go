package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"lecture-anki-backend/internal/pipeline"
)

type Config struct {
	// Server
	Port           string        `envconfig:"PORT" default:"8080"`
	Env            string        `envconfig:"ENV" default:"development"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10m"`
	MaxUploadMB    int64         `envconfig:"MAX_UPLOAD_MB" default:"200"`
	RateLimit      int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`

	// Redis (optional; without it progress only reaches sockets on this instance)
	RedisURL    string        `envconfig:"REDIS_URL"`
	ProgressTTL time.Duration `envconfig:"PROGRESS_TTL" default:"1h"`

	// Gemini AI
	GeminiAPIKey         string `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiModel          string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	GeminiRequestsPerMin int    `envconfig:"GEMINI_REQUESTS_PER_MINUTE" default:"60"`
	GeminiConcurrentReqs int    `envconfig:"GEMINI_CONCURRENT_REQUESTS" default:"8"`

	// Generation
	GenerationConcurrency int           `envconfig:"GENERATION_CONCURRENCY" default:"4"`
	RetryMaxAttempts      int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"4"`
	RetryInitialInterval  time.Duration `envconfig:"RETRY_INITIAL_INTERVAL" default:"1s"`
	MaxCards              int           `envconfig:"MAX_CARDS" default:"1000"`
	WindowTarget          time.Duration `envconfig:"WINDOW_TARGET" default:"150s"`
	WindowMin             time.Duration `envconfig:"WINDOW_MIN" default:"90s"`
	WindowMax             time.Duration `envconfig:"WINDOW_MAX" default:"210s"`

	// Storage
	StoragePath string `envconfig:"STORAGE_PATH" default:"./uploads"`

	// Slide rendering tools
	PdftoppmPath string `envconfig:"PDFTOPPM_PATH" default:"pdftoppm"`
	SofficePath  string `envconfig:"SOFFICE_PATH" default:"soffice"`

	// Frontend
	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:5173"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the generation pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}
	if c.WindowMin <= 0 || c.WindowMin > c.WindowTarget || c.WindowTarget > c.WindowMax {
		errs = append(errs, fmt.Errorf("window bounds must satisfy 0 < min <= target <= max (got %s/%s/%s)", c.WindowMin, c.WindowTarget, c.WindowMax))
	}
	if c.GenerationConcurrency < 1 {
		errs = append(errs, errors.New("GENERATION_CONCURRENCY must be at least 1"))
	}
	if c.GeminiConcurrentReqs < 1 {
		errs = append(errs, errors.New("GEMINI_CONCURRENT_REQUESTS must be at least 1"))
	}
	if c.GeminiRequestsPerMin < 1 {
		errs = append(errs, errors.New("GEMINI_REQUESTS_PER_MINUTE must be at least 1"))
	}
	if c.RetryMaxAttempts < 1 {
		errs = append(errs, errors.New("RETRY_MAX_ATTEMPTS must be at least 1"))
	}
	if c.MaxCards < 1 {
		errs = append(errs, errors.New("MAX_CARDS must be at least 1"))
	}
	if c.MaxUploadMB < 1 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be at least 1"))
	}
	if c.RateLimit < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be at least 1"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "" || c.Env == "development" || c.Env == "local"
}

// Window converts the window bounds to the seconds the windowing engine works in.
func (c *Config) Window() pipeline.WindowOptions {
	return pipeline.WindowOptions{
		Target: c.WindowTarget.Seconds(),
		Min:    c.WindowMin.Seconds(),
		Max:    c.WindowMax.Seconds(),
	}
}

func (c *Config) Retry() pipeline.RetryConfig {
	cfg := pipeline.DefaultRetryConfig()
	cfg.MaxAttempts = c.RetryMaxAttempts
	cfg.InitialInterval = c.RetryInitialInterval
	return cfg
}

// MaxUploadBytes is the multipart body limit.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
