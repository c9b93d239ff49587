// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.Reset()
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// AGENT_CACHE_BACKEND overrides agent.cache.backend, and so on.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig() // optional overlay

	return finalize(viper.GetViper())
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.Reset()
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finalize(viper.GetViper())
}

func finalize(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Watch reloads the active config file on change. Only configs that pass
// validation reach onChange.
func Watch(onChange func(*Config), onError func(error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg, err := finalize(viper.GetViper())
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		onChange(cfg)
	})
	viper.WatchConfig()
}

// loadEnvFile loads .env from the working directory, its parents, or the module root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets that are conventionally passed as plain env vars.
func overrideEmptyConfig(cfg *Config) {
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.APIKey != "" {
			continue
		}
		envKey := "PROVIDER_" + strings.ToUpper(strings.ReplaceAll(p.Name, "-", "_")) + "_API_KEY"
		if val := os.Getenv(envKey); val != "" {
			p.APIKey = val
		}
	}

	if cfg.APIs.MarketData.APIKey == "" {
		if val := os.Getenv("MARKET_DATA_API_KEY"); val != "" {
			cfg.APIs.MarketData.APIKey = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}
}

// DefaultRateLimits are the per-class ceilings used when a class is not configured.
var DefaultRateLimits = map[string]RateLimitClass{
	"generation":  {Requests: 20, Window: 60000},
	"market_data": {Requests: 120, Window: 60000},
	"database":    {Requests: 240, Window: 60000},
	"search":      {Requests: 120, Window: 60000},
	"batch":       {Requests: 200, Window: 60000},
	"default":     {Requests: 60, Window: 60000},
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "finance-agent"
	}

	// Server
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 45000
	}

	// Database
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.NewsIndex == "" {
		cfg.Database.Elasticsearch.NewsIndex = "market_news"
	}
	if cfg.Database.Redis.PoolSize == 0 {
		cfg.Database.Redis.PoolSize = 10
	}

	// Classifier
	c := &cfg.Agent.Classifier
	if c.ConfidenceFloor == 0 {
		c.ConfidenceFloor = 0.6
	}
	if c.EscalationThreshold == 0 {
		c.EscalationThreshold = 0.7
	}
	if c.EscalationClarity == 0 {
		c.EscalationClarity = 7
	}
	if c.RemoteTimeout == 0 {
		c.RemoteTimeout = 8000
	}

	// Orchestrator
	if cfg.Agent.Orchestrator.MaxConcurrentTools == 0 {
		cfg.Agent.Orchestrator.MaxConcurrentTools = 4
	}
	if cfg.Agent.Orchestrator.DefaultToolTimeout == 0 {
		cfg.Agent.Orchestrator.DefaultToolTimeout = 5000
	}

	// Cache
	if cfg.Agent.Cache.Backend == "" {
		cfg.Agent.Cache.Backend = "memory"
	}
	if cfg.Agent.Cache.EntityTTL == 0 {
		cfg.Agent.Cache.EntityTTL = 15 * 60 * 1000
	}
	if cfg.Agent.Cache.GeneralTTL == 0 {
		cfg.Agent.Cache.GeneralTTL = 30 * 60 * 1000
	}
	if cfg.Agent.Cache.KeyPrefix == "" {
		cfg.Agent.Cache.KeyPrefix = "agent:cache:"
	}

	// Rate limits
	if cfg.Agent.RateLimits == nil {
		cfg.Agent.RateLimits = make(map[string]RateLimitClass)
	}
	for name, class := range DefaultRateLimits {
		if _, ok := cfg.Agent.RateLimits[name]; !ok {
			cfg.Agent.RateLimits[name] = class
		}
	}
	if cfg.Agent.RateLimiter.Backend == "" {
		cfg.Agent.RateLimiter.Backend = "memory"
	}
	if cfg.Agent.RateLimiter.KeyPrefix == "" {
		cfg.Agent.RateLimiter.KeyPrefix = "agent:ratelimit:"
	}

	// Batch
	if cfg.Agent.Batch.MaxEntities == 0 {
		cfg.Agent.Batch.MaxEntities = 50
	}
	if cfg.Agent.Batch.Retention == 0 {
		cfg.Agent.Batch.Retention = 60 * 60 * 1000
	}
	if cfg.Agent.Batch.MaxJobs == 0 {
		cfg.Agent.Batch.MaxJobs = 1000
	}
	if cfg.Agent.Batch.LimitClass == "" {
		cfg.Agent.Batch.LimitClass = "batch"
	}

	// Maintenance
	m := &cfg.Agent.Maintenance
	if m.BatchSweepSchedule == "" {
		m.BatchSweepSchedule = "@every 1m"
	}
	if m.CachePurgeSchedule == "" {
		m.CachePurgeSchedule = "@every 5m"
	}
	if m.RateLimitSweepSchedule == "" {
		m.RateLimitSweepSchedule = "@every 2m"
	}

	// Providers
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.Timeout == 0 {
			p.Timeout = 20000
		}
		if p.MaxTokens == 0 {
			p.MaxTokens = 1024
		}
		if p.Temperature == 0 {
			p.Temperature = 0.3
		}
	}

	// APIs
	if cfg.APIs.MarketData.Timeout == 0 {
		cfg.APIs.MarketData.Timeout = 5000
	}
	if cfg.APIs.MarketData.RatePerSecond == 0 {
		cfg.APIs.MarketData.RatePerSecond = 10
	}
	if cfg.APIs.MarketData.Burst == 0 {
		cfg.APIs.MarketData.Burst = 20
	}
	if cfg.APIs.Synthesis.MaxAttempts == 0 {
		cfg.APIs.Synthesis.MaxAttempts = 2
	}

	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "configs/tool-catalog.json"
	}

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1.0
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if len(cfg.Providers) == 0 {
		return fmt.Errorf("at least one entry in providers is required")
	}
	seen := make(map[string]bool, len(cfg.Providers))
	for i, p := range cfg.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("providers[%d].name %q is duplicated", i, p.Name)
		}
		seen[p.Name] = true
		if p.BaseURL == "" {
			return fmt.Errorf("providers[%d].base_url is required", i)
		}
	}

	c := cfg.Agent.Classifier
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("agent.classifier.confidence_floor must be within [0,1]")
	}
	if c.EscalationThreshold < 0 || c.EscalationThreshold > 1 {
		return fmt.Errorf("agent.classifier.escalation_threshold must be within [0,1]")
	}
	if c.RemoteEnabled && c.RemoteBaseURL == "" {
		return fmt.Errorf("agent.classifier.remote_base_url is required when remote_enabled")
	}

	if cfg.Agent.Orchestrator.MaxConcurrentTools < 1 {
		return fmt.Errorf("agent.orchestrator.max_concurrent_tools must be >= 1")
	}

	for name, class := range cfg.Agent.RateLimits {
		if class.Requests <= 0 || class.Window <= 0 {
			return fmt.Errorf("agent.rate_limits.%s requires positive requests and window", name)
		}
	}

	needsRedis := cfg.Agent.Cache.Backend == "redis" || cfg.Agent.RateLimiter.Backend == "redis"
	if needsRedis && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required for redis-backed cache or rate limiter")
	}

	if cfg.Database.Postgres.Enabled {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	}

	if cfg.Database.Elasticsearch.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required")
	}

	if cfg.Tracing.Enabled && cfg.Tracing.JaegerEndpoint == "" {
		return fmt.Errorf("tracing.jaeger_endpoint is required when tracing is enabled")
	}

	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required")
	}
	if cfg.Notifications.SES.Enabled && (cfg.Notifications.SES.FromEmail == "" || len(cfg.Notifications.SES.ToEmails) == 0) {
		return fmt.Errorf("notifications.ses.from_email and to_emails are required")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetToolConfig retrieves tool-specific configuration with fallback to defaults
func GetToolConfig(cfg *Config, toolName string) ToolConfig {
	if tool, exists := cfg.Tools[toolName]; exists {
		return tool
	}
	return ToolConfig{Enabled: true}
}

// IsToolEnabled checks if a specific tool is enabled
func IsToolEnabled(cfg *Config, toolName string) bool {
	if tool, exists := cfg.Tools[toolName]; exists {
		return tool.Enabled
	}
	return true
}
