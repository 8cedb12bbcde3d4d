package common

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	LLM      LLMConfig      `toml:"llm"`
	Ingest   IngestConfig   `toml:"ingest"`
	OTP      OTPConfig      `toml:"otp"`
	SMTP     SMTPConfig     `toml:"smtp"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string   `toml:"driver" validate:"oneof=sqlite postgres"`
	DSN              string   `toml:"dsn" validate:"required"`
	MaxConns         int32    `toml:"max_conns"`
	MinConns         int32    `toml:"min_conns"`
	MaxConnLifetime  Duration `toml:"max_conn_lifetime"`
	MaxConnIdleTime  Duration `toml:"max_conn_idle_time"`
	DialTimeout      Duration `toml:"dial_timeout"`
	StatementTimeout Duration `toml:"statement_timeout"`
}

// ServerConfig holds listener addresses for the daemon
type ServerConfig struct {
	HTTPAddr        string   `toml:"http_addr"`
	GRPCAddr        string   `toml:"grpc_addr"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	PersistResults  bool     `toml:"persist_results"`
}

// LLMConfig holds inference-provider configuration
type LLMConfig struct {
	Provider  string   `toml:"provider" validate:"oneof=openai anthropic gemini"`
	BaseURL   string   `toml:"base_url"`
	Model     string   `toml:"model" validate:"required"`
	APIKey    string   `toml:"api_key"`
	Timeout   Duration `toml:"timeout"`
	Referer   string   `toml:"referer"`
	Title     string   `toml:"title"`
	JSONMode  bool     `toml:"json_mode"`
	MaxTokens int      `toml:"max_tokens"`
}

// IngestConfig controls how source artifacts are fetched and converted
type IngestConfig struct {
	MaxChars     int      `toml:"max_chars" validate:"gt=0"`
	MaxBytes     int64    `toml:"max_bytes" validate:"gt=0"`
	FetchTimeout Duration `toml:"fetch_timeout"`
	PDFExtractor string   `toml:"pdf_extractor" validate:"oneof=pdfcpu pdftotext"`
	Pdftotext    string   `toml:"pdftotext"`
	// AllowLocal lets sources name server-side files. The daemon never sets it.
	AllowLocal   bool     `toml:"-"`
}

// OTPConfig controls one-time-code issuance
type OTPConfig struct {
	TTL    Duration `toml:"ttl"`
	Digits int      `toml:"digits" validate:"gte=4,lte=10"`
}

// SMTPConfig holds outbound mail settings
type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	FromName string `toml:"from_name"`
}

// LogConfig controls the slog handler installed by the binaries
type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=json text"`
}

// Duration lets durations be written as "45s" in TOML files.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", string(b), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// NewDefaultConfig returns the configuration used when nothing else is supplied.
func NewDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "lifemaxxing.db",
			MaxConns:        20,
			MinConns:        2,
			MaxConnLifetime: Duration{30 * time.Minute},
			MaxConnIdleTime: Duration{5 * time.Minute},
			DialTimeout:     Duration{3 * time.Second},
		},
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":9090",
			ShutdownTimeout: Duration{10 * time.Second},
			PersistResults:  true,
		},
		LLM: LLMConfig{
			Provider:  "openai",
			BaseURL:   "https://openrouter.ai/api/v1",
			Model:     "google/gemini-2.0-flash-lite-preview-02-05:free",
			Timeout:   Duration{60 * time.Second},
			Referer:   "https://lifemaxxing.app",
			Title:     "LifeMaxxing",
			MaxTokens: 2048,
		},
		Ingest: IngestConfig{
			MaxChars:     30000,
			MaxBytes:     20 << 20,
			FetchTimeout: Duration{30 * time.Second},
			PDFExtractor: "pdfcpu",
			Pdftotext:    "pdftotext",
		},
		OTP: OTPConfig{
			TTL:    Duration{10 * time.Minute},
			Digits: 6,
		},
		SMTP: SMTPConfig{
			Port:     587,
			FromName: "LifeMaxxing OS",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig starts from defaults, merges each TOML file in order (later files
// win), then applies environment overrides. Unknown keys are an error.
func LoadConfig(paths ...string) (*Config, error) {
	cfg := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(c *Config) {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime.Duration = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime.Duration)
	c.Database.MaxConnIdleTime.Duration = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime.Duration)
	c.Database.DialTimeout.Duration = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout.Duration)
	c.Database.StatementTimeout.Duration = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout.Duration)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)

	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("OPENROUTER_API_KEY", c.LLM.APIKey)
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.Timeout.Duration = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout.Duration)

	c.Ingest.MaxChars = getEnvAsInt("MAX_TEXT_CHARS", c.Ingest.MaxChars)
	c.Ingest.PDFExtractor = getEnv("PDF_EXTRACTOR", c.Ingest.PDFExtractor)
	c.Ingest.FetchTimeout.Duration = getEnvAsDuration("FETCH_TIMEOUT", c.Ingest.FetchTimeout.Duration)

	c.SMTP.Host = getEnv("SMTP_HOST", c.SMTP.Host)
	c.SMTP.Port = getEnvAsInt("SMTP_PORT", c.SMTP.Port)
	c.SMTP.Username = getEnv("EMAIL_USER", c.SMTP.Username)
	c.SMTP.Password = getEnv("EMAIL_PASSWORD", c.SMTP.Password)
	c.SMTP.From = getEnv("EMAIL_FROM", c.SMTP.From)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if err := ValidateStruct(c); err != nil {
		return NewAppError("CONFIG_ERROR", "invalid configuration", err)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENROUTER_API_KEY or LLM_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" && c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "at least one of HTTP_ADDR or GRPC_ADDR is required", ErrInvalidInput)
	}
	return nil
}

// SlogLevel converts the configured level name.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
