// Package config loads gennotes settings from defaults, an optional config
// file and GENNOTES_* environment variables, in that order of precedence.
package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	Blob    BlobConfig    `mapstructure:"blob"`
	Auth    AuthConfig    `mapstructure:"auth"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// LogConfig selects the logger flavour.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// StorageConfig selects the persistent store.
type StorageConfig struct {
	Driver      string `mapstructure:"driver" validate:"oneof=memory sqlite postgres"`
	SQLitePath  string `mapstructure:"sqlite_path" validate:"required_if=Driver sqlite"`
	PostgresDSN string `mapstructure:"postgres_dsn" validate:"required_if=Driver postgres"`
}

// BlobConfig selects where history archives are written.
type BlobConfig struct {
	Driver string   `mapstructure:"driver" validate:"oneof=memory fs s3"`
	FSRoot string   `mapstructure:"fs_root" validate:"required_if=Driver fs"`
	S3     S3Config `mapstructure:"s3"`
}

// S3Config configures the S3 blob backend. Empty credentials fall back to
// the default AWS credential chain.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// AuthConfig lists the static bearer tokens the API accepts.
type AuthConfig struct {
	Tokens []TokenConfig `mapstructure:"tokens" validate:"dive"`
}

// TokenConfig maps one bearer token to a user and its granted scopes.
type TokenConfig struct {
	Token    string   `mapstructure:"token" validate:"required"`
	UserID   int64    `mapstructure:"user_id" validate:"gt=0"`
	Username string   `mapstructure:"username" validate:"required"`
	Scopes   []string `mapstructure:"scopes"`
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "gennotes.db")
	v.SetDefault("storage.postgres_dsn", "")

	v.SetDefault("blob.driver", "fs")
	v.SetDefault("blob.fs_root", "archive")
	v.SetDefault("blob.s3.bucket", "")
	v.SetDefault("blob.s3.region", "us-east-1")
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.prefix", "")
	v.SetDefault("blob.s3.access_key_id", "")
	v.SetDefault("blob.s3.secret_access_key", "")
	v.SetDefault("blob.s3.use_path_style", false)
}

// NewViper returns a viper instance with defaults and environment binding.
// When path is set the file is merged over the defaults.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("GENNOTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}
	return v, nil
}

// Load reads configuration from path (optional) and the environment, then validates it.
func Load(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return LoadWithViper(v)
}

// LoadWithViper unmarshals and validates configuration from v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and the S3 settings required by the s3 driver.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if cfg.Blob.Driver == "s3" && cfg.Blob.S3.Bucket == "" {
		return errors.New("invalid config: blob.s3.bucket is required for the s3 driver")
	}
	return nil
}
