package config

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/shopspring/decimal"
)

type (
	Config struct {
		App       `json:"app"       toml:"app"`
		HTTP      `json:"http"      toml:"http"`
		DB        `json:"db"        toml:"db"`
		Redis     `json:"redis"     toml:"redis"`
		Kafka     `json:"kafka"     toml:"kafka"`
		Scheduler `json:"scheduler" toml:"scheduler"`
		Jobs      `json:"jobs"      toml:"jobs"`
		Risk      `json:"risk"      toml:"risk"`
		Screening `json:"screening" toml:"screening"`
		Feeds     `json:"feeds"     toml:"feeds"`
	}

	App struct {
		Name        string `json:"name"        toml:"name"        env:"APP_NAME"`
		Environment string `json:"environment" toml:"environment" env:"ENV_NAME" env-default:"dev"`
		Debug       bool   `json:"debug"       toml:"debug"       env:"DEBUG"    env-default:"false"`
	}

	HTTP struct {
		Port string `json:"port" toml:"port" env:"HTTP_PORT" env-default:"8080"`
	}

	DB struct {
		DatabaseURL       string `json:"database_url"        toml:"database_url"        env:"DATABASE_URL" env-required:"true"`
		PoolMax           int32  `json:"pool_max"            toml:"pool_max"            env:"PG_POOL_MAX" env-default:"10"`
		ConnectTimeout    int    `json:"connect_timeout"     toml:"connect_timeout"     env:"PG_POOL_CONN_TIMEOUT" env-default:"5"`
		HealthCheckPeriod int    `json:"health_check_period" toml:"health_check_period" env:"PG_POOL_HEALTHCHECK" env-default:"1"`
	}

	// Redis keeps leases instead of Postgres when URL is set.
	Redis struct {
		URL string `json:"url" toml:"url" env:"REDIS_URL"`
	}

	// Kafka events are disabled when Brokers is empty.
	Kafka struct {
		Brokers []string `json:"brokers" toml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
		Topic   string   `json:"topic"   toml:"topic"   env:"KAFKA_TOPIC" env-default:"compliance.transaction.created"`
	}

	Scheduler struct {
		Enabled           bool `json:"enabled"            toml:"enabled"            env:"SCHEDULER_ENABLED" env-default:"true"`
		ProductionEnabled bool `json:"production_enabled" toml:"production_enabled" env:"SCHEDULER_PRODUCTION_ENABLED" env-default:"false"`
		RetryDelayMs      int  `json:"retry_delay_ms"     toml:"retry_delay_ms"     env:"LOCK_RETRY_DELAY_MS" env-default:"2000"`
	}

	Job struct {
		Schedule       string `json:"schedule"         toml:"schedule"         env:"SCHEDULE"`
		LockDurationMs int64  `json:"lock_duration_ms" toml:"lock_duration_ms" env:"LOCK_DURATION_MS"`
		Enabled        bool   `json:"enabled"          toml:"enabled"          env:"ENABLED"`
	}

	Jobs struct {
		Resync    Job `json:"resync"    toml:"resync"    env-prefix:"RESYNC_"`
		Screening Job `json:"screening" toml:"screening" env-prefix:"SCREENING_"`
	}

	Risk struct {
		JurisdictionWeight float64 `json:"jurisdiction_weight" toml:"jurisdiction_weight" env:"RISK_JURISDICTION_WEIGHT" env-default:"0.4"`
		EntityWeight       float64 `json:"entity_weight"       toml:"entity_weight"       env:"RISK_ENTITY_WEIGHT" env-default:"0.4"`
		TransactionWeight  float64 `json:"transaction_weight"  toml:"transaction_weight"  env:"RISK_TRANSACTION_WEIGHT" env-default:"0.2"`
		CacheTTLMinutes    int     `json:"cache_ttl_minutes"   toml:"cache_ttl_minutes"   env:"RISK_CACHE_TTL_MINUTES" env-default:"60"`
		MaxHops            int     `json:"max_hops"            toml:"max_hops"            env:"RISK_MAX_HOPS" env-default:"1"`
		HopWeightDecay     float64 `json:"hop_weight_decay"    toml:"hop_weight_decay"    env:"RISK_HOP_WEIGHT_DECAY" env-default:"0.5"`
		RecentTransactions int     `json:"recent_transactions" toml:"recent_transactions" env:"RISK_RECENT_TRANSACTIONS" env-default:"10"`
	}

	Screening struct {
		BatchSize                   int    `json:"batch_size"                    toml:"batch_size"                    env:"SCREENING_BATCH_SIZE" env-default:"5"`
		PageSize                    int    `json:"page_size"                     toml:"page_size"                     env:"SCREENING_PAGE_SIZE" env-default:"25"`
		MaxPages                    int    `json:"max_pages"                     toml:"max_pages"                     env:"SCREENING_MAX_PAGES" env-default:"10"`
		DefaultRiskScoreThreshold   int    `json:"default_risk_score_threshold"  toml:"default_risk_score_threshold"  env:"SCREENING_DEFAULT_RISK_THRESHOLD" env-default:"50"`
		DefaultTransactionThreshold string `json:"default_transaction_threshold" toml:"default_transaction_threshold" env:"SCREENING_DEFAULT_TX_THRESHOLD" env-default:"0"`
	}

	Feeds struct {
		AttributionAPIURL  string `json:"attribution_api_url"  toml:"attribution_api_url"  env:"ATTRIBUTION_API_URL"`
		AttributionAPIKey  string `json:"attribution_api_key"  toml:"attribution_api_key"  env:"ATTRIBUTION_API_KEY"`
		ExplorerAPIURL     string `json:"explorer_api_url"     toml:"explorer_api_url"     env:"EXPLORER_API_URL" env-default:"https://blockstream.info/api"`
		SolanaRPCURL       string `json:"solana_rpc_url"       toml:"solana_rpc_url"       env:"SOLANA_RPC_URL"`
		JurisdictionSource string `json:"jurisdiction_source"  toml:"jurisdiction_source"  env:"JURISDICTION_SOURCE_URL"`
	}
)

// LockDuration returns the lease TTL of the job.
func (j Job) LockDuration() time.Duration {
	return time.Duration(j.LockDurationMs) * time.Millisecond
}

func (s Scheduler) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelayMs) * time.Millisecond
}

func (r Risk) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLMinutes) * time.Minute
}

// Validate checks values cleanenv cannot express.
func (c *Config) Validate() error {
	var errs []error

	sum := c.Risk.JurisdictionWeight + c.Risk.EntityWeight + c.Risk.TransactionWeight
	if math.Abs(sum-1) > 1e-9 {
		errs = append(errs, fmt.Errorf("risk weights must sum to 1, got %.4f", sum))
	}
	if c.Risk.CacheTTLMinutes <= 0 {
		errs = append(errs, errors.New("risk cache ttl must be positive"))
	}
	for name, job := range map[string]Job{"resync": c.Jobs.Resync, "screening": c.Jobs.Screening} {
		if job.Enabled && job.Schedule == "" {
			errs = append(errs, fmt.Errorf("job %s: schedule is required", name))
		}
		if job.Enabled && job.LockDurationMs <= 0 {
			errs = append(errs, fmt.Errorf("job %s: lock duration must be positive", name))
		}
	}
	if c.Screening.BatchSize <= 0 || c.Screening.PageSize <= 0 || c.Screening.MaxPages <= 0 {
		errs = append(errs, errors.New("screening batch size, page size and max pages must be positive"))
	}
	if c.Screening.DefaultRiskScoreThreshold < 0 || c.Screening.DefaultRiskScoreThreshold > 100 {
		errs = append(errs, errors.New("default risk score threshold must be within 0..100"))
	}
	if threshold, err := decimal.NewFromString(c.Screening.DefaultTransactionThreshold); err != nil || threshold.IsNegative() {
		errs = append(errs, fmt.Errorf("default transaction threshold %q must be a non-negative decimal", c.Screening.DefaultTransactionThreshold))
	}

	return errors.Join(errs...)
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	_, b, _, _ := runtime.Caller(0)
	basePath := filepath.Dir(b)

	configTomlPath := filepath.Join(basePath, "config.toml")
	err := cleanenv.ReadConfig(configTomlPath, cfg)
	if err != nil {
		configJsonPath := filepath.Join(basePath, "config.json")
		err = cleanenv.ReadConfig(configJsonPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	err = cleanenv.ReadEnv(cfg)
	if err != nil {
		return nil, fmt.Errorf("env read error: %w", err)
	}

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
