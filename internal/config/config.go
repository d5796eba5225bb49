package config

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Tiger  TigerConfig  `yaml:"tiger" mapstructure:"tiger"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	S3     S3Config     `yaml:"s3" mapstructure:"s3"`
	Merge  MergeConfig  `yaml:"merge" mapstructure:"merge"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"required,oneof=json console"`
}

// DataConfig locates the archive cache.
type DataConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir" validate:"required"`
}

// TigerConfig selects the TIGER/Line source.
type TigerConfig struct {
	// BaseURL is the directory holding tl_2010_*_tabblock10.zip archives.
	// http(s), ftp and s3 URLs are supported.
	BaseURL    string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	GEOIDField string `yaml:"geoid_field" mapstructure:"geoid_field" validate:"required"`
}

// FetchConfig configures archive downloads.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent" validate:"required"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gte=1"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency" validate:"gte=1,lte=16"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec" validate:"gte=0"`
}

// Timeout returns TimeoutSecs as a duration.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// S3Config configures the S3 mirror fetcher.
type S3Config struct {
	Region   string `yaml:"region" mapstructure:"region"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,url"`
}

// MergeConfig controls how odd inputs are treated.
type MergeConfig struct {
	StrictGEOIDs bool `yaml:"strict_geoids" mapstructure:"strict_geoids"`
	RequireMatch bool `yaml:"require_match" mapstructure:"require_match"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CENSUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("data.dir", "data")
	v.SetDefault("tiger.base_url", "https://www2.census.gov/geo/tiger/TIGER2010/TABBLOCK/2010/")
	v.SetDefault("tiger.geoid_field", "GEOID10")
	v.SetDefault("fetch.user_agent", "census-consolidator/1.0")
	v.SetDefault("fetch.timeout_secs", 600)
	v.SetDefault("fetch.max_attempts", 1)
	v.SetDefault("fetch.concurrency", 1)
	v.SetDefault("fetch.rate_per_sec", 0)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("merge.strict_geoids", true)
	v.SetDefault("merge.require_match", false)
	v.SetDefault("server.port", 8080)

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

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their config keys.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration for the given command mode. Modes
// without extra requirements, such as cobra's "completion" and "help",
// get only the structural checks.
func (c *Config) Validate(mode string) error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return eris.Wrap(err, "config: validate")
		}
		for _, fe := range verrs {
			errs = append(errs, describe(fe))
		}
	}

	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "oneof":
		return key + " must be one of [" + fe.Param() + "]"
	case "gte":
		return key + " must be >= " + fe.Param()
	case "lte":
		return key + " must be <= " + fe.Param()
	case "url":
		return key + " must be a URL"
	default:
		return key + " failed " + fe.Tag()
	}
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
