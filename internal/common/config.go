package common

import (
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Server   ServerConfig   `mapstructure:"server"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" | "json"
}

// DatabaseConfig holds the remote report store configuration
type DatabaseConfig struct {
	Driver           string        `mapstructure:"driver"` // "postgres" | "sqlite"
	DSN              string        `mapstructure:"dsn"`
	MaxConns         int32         `mapstructure:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `mapstructure:"max_conn_idle_time"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// CacheConfig holds the local report cache configuration
type CacheConfig struct {
	Path       string        `mapstructure:"path"` // sqlite file; empty keeps the cache in memory
	ListTTL    time.Duration `mapstructure:"list_ttl"`
	PreviewTTL time.Duration `mapstructure:"preview_ttl"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract     string        `mapstructure:"tesseract"`
	Pdftotext     string        `mapstructure:"pdftotext"`
	Pdftoppm      string        `mapstructure:"pdftoppm"`
	Lang          string        `mapstructure:"lang"`
	DPI           int           `mapstructure:"dpi"`
	MaxPages      int           `mapstructure:"max_pages"`
	TessdataDir   string        `mapstructure:"tessdata_dir"`
	HeicConverter string        `mapstructure:"heic_converter"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// AnalysisConfig holds the AI veterinary assistant configuration
type AnalysisConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	MaxTokens     int64         `mapstructure:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Workers       int           `mapstructure:"workers"`
	QueueSize     int           `mapstructure:"queue_size"`
	RatePerMinute int           `mapstructure:"rate_per_minute"`
}

// ServerConfig holds listener addresses for the daemon
type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
	GRPCAddr string `mapstructure:"grpc_addr"`
}

// IngestConfig configures the drop-folder watcher
type IngestConfig struct {
	DropDir  string        `mapstructure:"drop_dir"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// RealtimeConfig configures the Postgres change feed
type RealtimeConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Channel string `mapstructure:"channel"`
}

// LoadConfig reads configuration from an optional config.yaml and PETHEALTH_* environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PETHEALTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:pethealth.db")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("database.dial_timeout", 3*time.Second)
	v.SetDefault("database.statement_timeout", time.Duration(0))

	v.SetDefault("cache.path", "")
	v.SetDefault("cache.list_ttl", 24*time.Hour)
	v.SetDefault("cache.preview_ttl", 7*24*time.Hour)

	v.SetDefault("ocr.tesseract", "tesseract")
	v.SetDefault("ocr.pdftotext", "pdftotext")
	v.SetDefault("ocr.pdftoppm", "pdftoppm")
	v.SetDefault("ocr.lang", "eng")
	v.SetDefault("ocr.dpi", 300)
	v.SetDefault("ocr.max_pages", 10)
	v.SetDefault("ocr.tessdata_dir", "")
	v.SetDefault("ocr.heic_converter", "magick")
	v.SetDefault("ocr.timeout", 90*time.Second)

	v.SetDefault("analysis.api_key", "")
	v.SetDefault("analysis.base_url", "")
	v.SetDefault("analysis.model", "claude-haiku-4-5-20251001")
	v.SetDefault("analysis.max_tokens", 1024)
	v.SetDefault("analysis.timeout", 60*time.Second)
	v.SetDefault("analysis.workers", 2)
	v.SetDefault("analysis.queue_size", 128)
	v.SetDefault("analysis.rate_per_minute", 30)

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.grpc_addr", ":9090")

	v.SetDefault("ingest.drop_dir", "")
	v.SetDefault("ingest.debounce", 500*time.Millisecond)

	v.SetDefault("realtime.enabled", false)
	v.SetDefault("realtime.channel", "health_report_changes")
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", "database.driver must be postgres or sqlite", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "database.dsn is required", ErrInvalidInput)
	}
	if c.Realtime.Enabled && c.Database.Driver != "postgres" {
		return NewAppError("CONFIG_ERROR", "realtime feed requires the postgres driver", ErrInvalidInput)
	}
	if c.Cache.ListTTL <= 0 || c.Cache.PreviewTTL <= 0 {
		return NewAppError("CONFIG_ERROR", "cache TTLs must be positive", ErrInvalidInput)
	}
	return nil
}
