package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Primary struct {
			DSN string `mapstructure:"dsn"`
		} `mapstructure:"primary"`
		Vector struct {
			DSN string `mapstructure:"dsn"`
		} `mapstructure:"vector"`
	} `mapstructure:"database"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
	} `mapstructure:"worker"`

	Indexing struct {
		// BatchUploadLimit caps how many documents one indexing batch may
		// carry when billing is enabled.
		BatchUploadLimit int `mapstructure:"batch_upload_limit"`
		// TenantIsolatedTaskConcurrency caps how many waiting tasks are
		// dispatched when a tenant task finishes.
		TenantIsolatedTaskConcurrency int `mapstructure:"tenant_isolated_task_concurrency"`
		// TaskTTLSeconds is the TTL on a tenant's running flag.
		TaskTTLSeconds int `mapstructure:"task_ttl_seconds"`
		// RetryFlagTTLSeconds is the TTL on the per-document retry flag.
		RetryFlagTTLSeconds int `mapstructure:"retry_flag_ttl_seconds"`
	} `mapstructure:"indexing"`

	Embedding struct {
		OpenAIAPIKey  string `mapstructure:"openai_api_key"`
		OpenAIBaseURL string `mapstructure:"openai_base_url"`
		Model         string `mapstructure:"model"`
		Dimension     int    `mapstructure:"dimension"`
	} `mapstructure:"embedding"`

	Server struct {
		Address string `mapstructure:"address"`
	} `mapstructure:"server"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.BindEnv("embedding.openai_api_key", "OPENAI_API_KEY")
	viper.BindEnv("database.primary.dsn", "DATABASE_DSN")
	viper.BindEnv("redis.address", "REDIS_ADDRESS")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and env vars still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("worker.concurrency", 10)
	viper.SetDefault("worker.queues", map[string]int{"priority": 6, "normal": 3, "default": 1})
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("indexing.batch_upload_limit", 20)
	viper.SetDefault("indexing.tenant_isolated_task_concurrency", 1)
	viper.SetDefault("indexing.task_ttl_seconds", 600)
	viper.SetDefault("indexing.retry_flag_ttl_seconds", 600)
}
