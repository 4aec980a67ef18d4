package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Push     PushConfig     `yaml:"push"`
	Notifier NotifierConfig `yaml:"notifier"`
}

// PushConfig holds the VAPID key pair and sender identity for web push.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// NotifierConfig holds the notification engine configuration.
type NotifierConfig struct {
	Enabled        bool   `yaml:"enabled"`
	TriggerToken   string `yaml:"trigger_token"`
	WorkerPoolSize int    `yaml:"worker_pool_size"`
	LogQueueSize   int    `yaml:"log_queue_size"`
	RetentionDays  int    `yaml:"retention_days"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.Notifier.WorkerPoolSize <= 0 {
		log.Printf("notifier.worker_pool_size is not set or invalid; defaulting to 1")
		cfg.Notifier.WorkerPoolSize = 1
	}

	if cfg.Notifier.LogQueueSize <= 0 {
		cfg.Notifier.LogQueueSize = 256
	}

	if cfg.Notifier.RetentionDays <= 0 {
		cfg.Notifier.RetentionDays = 30
	}

	return &cfg, nil
}
