package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/haral/audit-reports/internal/metrics"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig   `yaml:"store" mapstructure:"store"`
	Files  FilesConfig   `yaml:"files" mapstructure:"files"`
	Rates  metrics.Rates `yaml:"rates" mapstructure:"rates"`
	Render RenderConfig  `yaml:"render" mapstructure:"render"`
	Server ServerConfig  `yaml:"server" mapstructure:"server"`
	Log    LogConfig     `yaml:"log" mapstructure:"log"`
}

// Customer delete policies.
const (
	DeleteRestrict = "restrict"
	DeleteCascade  = "cascade"
)

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver         string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL    string `yaml:"database_url" mapstructure:"database_url"`
	CustomerDelete string `yaml:"customer_delete" mapstructure:"customer_delete"`
	MaxConns       int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns       int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FilesConfig configures where uploaded logos and images live.
type FilesConfig struct {
	Driver             string `yaml:"driver" mapstructure:"driver"`
	Root               string `yaml:"root" mapstructure:"root"`
	GCSBucket          string `yaml:"gcs_bucket" mapstructure:"gcs_bucket"`
	GCSCredentialsFile string `yaml:"gcs_credentials_file" mapstructure:"gcs_credentials_file"`
	CacheDir           string `yaml:"cache_dir" mapstructure:"cache_dir"`
	MaxUploadMB        int    `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// RenderConfig configures PDF generation.
type RenderConfig struct {
	OutputDir            string      `yaml:"output_dir" mapstructure:"output_dir"`
	AutoRenderOnComplete bool        `yaml:"auto_render_on_complete" mapstructure:"auto_render_on_complete"`
	Concurrency          int         `yaml:"concurrency" mapstructure:"concurrency"`
	RequestsPerSecond    float64     `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MaxImagePx           int         `yaml:"max_image_px" mapstructure:"max_image_px"`
	Brand                BrandConfig `yaml:"brand" mapstructure:"brand"`
}

// BrandConfig holds the issuer identity printed on every page.
type BrandConfig struct {
	Name     string `yaml:"name" mapstructure:"name"`
	Tagline  string `yaml:"tagline" mapstructure:"tagline"`
	Claim    string `yaml:"claim" mapstructure:"claim"`
	Address  string `yaml:"address" mapstructure:"address"`
	Contact  string `yaml:"contact" mapstructure:"contact"`
	LogoPath string `yaml:"logo_path" mapstructure:"logo_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	rates := metrics.DefaultRates()
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "audit-reports.db")
	v.SetDefault("store.customer_delete", DeleteRestrict)
	v.SetDefault("files.driver", "local")
	v.SetDefault("files.root", "uploads")
	v.SetDefault("files.cache_dir", "cache/files")
	v.SetDefault("files.max_upload_mb", 16)
	v.SetDefault("rates.foil_cost_per_kg", rates.FoilCostPerKg)
	v.SetDefault("rates.roll_core_cost_per_kg", rates.RollCoreCostPerKg)
	v.SetDefault("rates.co2_per_kg_film", rates.CO2PerKgFilm)
	v.SetDefault("rates.cost_reduction_factor", rates.CostReductionFactor)
	v.SetDefault("rates.stability_factor", rates.StabilityFactor)
	v.SetDefault("render.output_dir", "reports")
	v.SetDefault("render.auto_render_on_complete", false)
	v.SetDefault("render.concurrency", 4)
	v.SetDefault("render.requests_per_second", 5.0)
	v.SetDefault("render.max_image_px", 1600)
	v.SetDefault("render.brand.name", "HARAL")
	v.SetDefault("render.brand.tagline", "VERPACKUNGSLÖSUNGEN")
	v.SetDefault("render.brand.claim", "NACHHALTIG BEEINDRUCKEN")
	v.SetDefault("render.brand.address", "HARAL Verpackungslösungen e.K. | Obere Langgasse 9 | D- 67346 Speyer")
	v.SetDefault("render.brand.contact", "Tel. 06232 - 695 95 85 | info@haral.eu | www.haral.eu")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable for the given mode
// ("cli" or "serve").
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "cli":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Render.RequestsPerSecond <= 0 {
			errs = append(errs, "render.requests_per_second must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}
	switch c.Store.CustomerDelete {
	case DeleteRestrict, DeleteCascade:
	default:
		errs = append(errs, "store.customer_delete must be restrict or cascade")
	}

	switch c.Files.Driver {
	case "local":
		if c.Files.Root == "" {
			errs = append(errs, "files.root is required for local storage")
		}
	case "gcs":
		if c.Files.GCSBucket == "" {
			errs = append(errs, "files.gcs_bucket is required for gcs storage")
		}
	default:
		errs = append(errs, "files.driver must be local or gcs")
	}

	if c.Rates.FoilCostPerKg <= 0 || c.Rates.CO2PerKgFilm <= 0 {
		errs = append(errs, "rates.foil_cost_per_kg and rates.co2_per_kg_film must be positive")
	}
	if c.Rates.RollCoreCostPerKg < 0 || c.Rates.CostReductionFactor < 0 || c.Rates.StabilityFactor < 0 {
		errs = append(errs, "rates must not be negative")
	}

	if c.Render.Concurrency <= 0 {
		errs = append(errs, "render.concurrency must be positive")
	}
	if c.Render.OutputDir == "" {
		errs = append(errs, "render.output_dir is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
