package config

import (
	"fmt"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Inference InferenceConfig `mapstructure:"inference"`
	Search    SearchConfig    `mapstructure:"search"`
	Sync      SyncConfig      `mapstructure:"sync"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port" validate:"min=1,max=65535"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string            `mapstructure:"host" validate:"required"`
	Port            int               `mapstructure:"port" validate:"min=1,max=65535"`
	Database        string            `mapstructure:"database" validate:"required"`
	Username        string            `mapstructure:"username" validate:"required"`
	Password        string            `mapstructure:"password"`
	TLS             bool              `mapstructure:"tls"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int               `mapstructure:"conn_max_lifetime_seconds"`
}

// InferenceConfig holds the two Python model services.
type InferenceConfig struct {
	Gesture ServiceConfig `mapstructure:"gesture"`
	Accent  ServiceConfig `mapstructure:"accent"`
}

type ServiceConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"positive_duration"`
}

type SearchConfig struct {
	URL               string        `mapstructure:"url" validate:"required,url"`
	Index             string        `mapstructure:"index" validate:"required"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"positive_duration"`
	BootstrapAttempts uint          `mapstructure:"bootstrap_attempts" validate:"min=1"`
}

type SyncConfig struct {
	Workers           int           `mapstructure:"workers" validate:"min=2,max=5"`
	QueueCapacity     int           `mapstructure:"queue_capacity" validate:"min=1"`
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"min=1"`
	BackoffBase       time.Duration `mapstructure:"backoff_base" validate:"positive_duration"`
	BackoffMax        time.Duration `mapstructure:"backoff_max" validate:"positive_duration"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval" validate:"positive_duration"`
	ReconcileBatch    int           `mapstructure:"reconcile_batch" validate:"min=1"`
	ReconcileRate     float64       `mapstructure:"reconcile_rate" validate:"gt=0"`
	SearchLimit       int           `mapstructure:"search_limit" validate:"min=1,max=1000"`
}

type ConfigLoader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
}

func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/vsl")
	}

	return &ConfigLoader{
		viper:      v,
		validator:  validate,
		translator: trans,
	}, nil
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.database", "vsl")
	v.SetDefault("database.username", "vsl")
	v.SetDefault("inference.gesture.base_url", "http://localhost:5000")
	v.SetDefault("inference.gesture.timeout", 30*time.Second)
	v.SetDefault("inference.accent.base_url", "http://localhost:5001")
	v.SetDefault("inference.accent.timeout", 10*time.Second)
	v.SetDefault("search.url", "http://localhost:9200")
	v.SetDefault("search.index", "dictionary")
	v.SetDefault("search.timeout", 5*time.Second)
	v.SetDefault("search.bootstrap_attempts", 5)
	v.SetDefault("sync.workers", 2)
	v.SetDefault("sync.queue_capacity", 100)
	v.SetDefault("sync.max_attempts", 5)
	v.SetDefault("sync.backoff_base", time.Second)
	v.SetDefault("sync.backoff_max", 30*time.Second)
	v.SetDefault("sync.reconcile_interval", 5*time.Minute)
	v.SetDefault("sync.reconcile_batch", 500)
	v.SetDefault("sync.reconcile_rate", 50.0)
	v.SetDefault("sync.search_limit", 50)

	// Endpoints and secrets can be overridden by environment variables
	envBindings := map[string]string{
		"database.password":          "DB_PASSWORD",
		"inference.gesture.base_url": "GESTURE_SERVICE_URL",
		"inference.accent.base_url":  "ACCENT_SERVICE_URL",
		"search.url":                 "ELASTICSEARCH_URL",
		"search.username":            "ELASTICSEARCH_USERNAME",
		"search.password":            "ELASTICSEARCH_PASSWORD",
	}
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := loader.validator.Struct(cfg); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMsgs []string
		for _, e := range validationErrors {
			errorMsgs = append(errorMsgs, translateWithPath(e, loader.translator))
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
	}
	if cfg.Sync.BackoffMax < cfg.Sync.BackoffBase {
		return nil, fmt.Errorf("invalid configuration: sync.backoff_max (%s) must not be less than sync.backoff_base (%s)", cfg.Sync.BackoffMax, cfg.Sync.BackoffBase)
	}

	return &cfg, nil
}
