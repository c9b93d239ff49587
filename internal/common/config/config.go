// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig             `mapstructure:"app"`
	Server        ServerConfig          `mapstructure:"server"`
	Database      DatabaseConfig        `mapstructure:"database"`
	Agent         AgentConfig           `mapstructure:"agent"`
	Tools         map[string]ToolConfig `mapstructure:"tools"`
	Providers     []ProviderConfig      `mapstructure:"providers"`
	APIs          APIsConfig            `mapstructure:"apis"`
	Catalog       CatalogConfig         `mapstructure:"catalog"`
	Logging       LoggingConfig         `mapstructure:"logging"`
	Tracing       TracingConfig         `mapstructure:"tracing"`
	Notifications NotificationConfig    `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	RequestTimeout  int    `mapstructure:"request_timeout"`  // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	NewsIndex string   `mapstructure:"news_index"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// --- Agent core ---

type AgentConfig struct {
	Classifier   ClassifierConfig          `mapstructure:"classifier"`
	Orchestrator OrchestratorConfig        `mapstructure:"orchestrator"`
	Cache        CacheConfig               `mapstructure:"cache"`
	RateLimits   map[string]RateLimitClass `mapstructure:"rate_limits"`
	RateLimiter  RateLimiterConfig         `mapstructure:"rate_limiter"`
	Batch        BatchConfig               `mapstructure:"batch"`
	Maintenance  MaintenanceConfig         `mapstructure:"maintenance"`
}

// ClassifierConfig holds the local heuristic thresholds and the remote escalation target.
type ClassifierConfig struct {
	ConfidenceFloor     float64  `mapstructure:"confidence_floor"`
	EscalationThreshold float64  `mapstructure:"escalation_threshold"`
	EscalationClarity   int      `mapstructure:"escalation_clarity"`
	RemoteEnabled       bool     `mapstructure:"remote_enabled"`
	RemoteBaseURL       string   `mapstructure:"remote_base_url"`
	RemoteTimeout       int      `mapstructure:"remote_timeout"` // milliseconds
	RemoteMaxRetries    int      `mapstructure:"remote_max_retries"`
	ExtraDenyList       []string `mapstructure:"extra_deny_list"`
}

type OrchestratorConfig struct {
	MaxConcurrentTools int  `mapstructure:"max_concurrent_tools"`
	DefaultToolTimeout int  `mapstructure:"default_tool_timeout"` // milliseconds
	ValidatePayloads   bool `mapstructure:"validate_payloads"`
}

type CacheConfig struct {
	Backend    string `mapstructure:"backend"`     // memory | redis
	EntityTTL  int    `mapstructure:"entity_ttl"`  // milliseconds
	GeneralTTL int    `mapstructure:"general_ttl"` // milliseconds
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// RateLimitClass is the sliding-window ceiling of one capability class.
type RateLimitClass struct {
	Requests int `mapstructure:"requests"`
	Window   int `mapstructure:"window"` // milliseconds
}

type RateLimiterConfig struct {
	Backend   string `mapstructure:"backend"` // memory | redis
	KeyPrefix string `mapstructure:"key_prefix"`
}

type BatchConfig struct {
	MaxEntities int    `mapstructure:"max_entities"`
	Retention   int    `mapstructure:"retention"` // milliseconds
	MaxJobs     int    `mapstructure:"max_jobs"`
	LimitClass  string `mapstructure:"limit_class"`
}

type MaintenanceConfig struct {
	BatchSweepSchedule     string `mapstructure:"batch_sweep_schedule"`
	CachePurgeSchedule     string `mapstructure:"cache_purge_schedule"`
	RateLimitSweepSchedule string `mapstructure:"rate_limit_sweep_schedule"`
}

// ToolConfig holds the settings applicable to every tool.
type ToolConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Timeout   int    `mapstructure:"timeout"` // milliseconds
	CostClass string `mapstructure:"cost_class"`
}

// ProviderConfig describes one generation provider; list order is fallback order.
type ProviderConfig struct {
	Name           string  `mapstructure:"name"`
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	Timeout        int     `mapstructure:"timeout"` // milliseconds
	MaxRetries     int     `mapstructure:"max_retries"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
	CostPer1KInput float64 `mapstructure:"cost_per_1k_input"`
	CostPer1KOut   float64 `mapstructure:"cost_per_1k_output"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	MarketData struct {
		BaseURL       string  `mapstructure:"base_url"`
		APIKey        string  `mapstructure:"api_key"`
		Timeout       int     `mapstructure:"timeout"` // milliseconds
		MaxRetries    int     `mapstructure:"max_retries"`
		RatePerSecond float64 `mapstructure:"rate_per_second"`
		Burst         int     `mapstructure:"burst"`
	} `mapstructure:"market_data"`

	Synthesis struct {
		MaxAttempts int `mapstructure:"max_attempts"`
	} `mapstructure:"synthesis"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// NotificationConfig holds settings for batch completion notifications.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled   bool     `mapstructure:"enabled"`
		FromEmail string   `mapstructure:"from_email"`
		ToEmails  []string `mapstructure:"to_emails"`
	} `mapstructure:"ses"`
}
