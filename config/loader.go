// Package config loads the application configuration from defaults, an
// optional YAML file, and environment variable overrides, in that order
// of precedence.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Agent     AgentConfig     `yaml:"agent" env:"AGENT"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	Postgres  PostgresConfig  `yaml:"postgres" env:"POSTGRES"`
	Weaviate  WeaviateConfig  `yaml:"weaviate" env:"WEAVIATE"`
	LLM       LLMConfig       `yaml:"llm" env:"LLM"`
	Approvals ApprovalsConfig `yaml:"approvals" env:"APPROVALS"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
}

// AgentConfig configures the orchestrator pipeline.
type AgentConfig struct {
	Name            string  `yaml:"name" env:"NAME"`
	Model           string  `yaml:"model" env:"MODEL"`
	Temperature     float64 `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens       int     `yaml:"max_tokens" env:"MAX_TOKENS"`
	EnableMemory    bool    `yaml:"enable_memory" env:"ENABLE_MEMORY"`
	EnableReasoning bool    `yaml:"enable_reasoning" env:"ENABLE_REASONING"`
	EnableRAG       bool    `yaml:"enable_rag" env:"ENABLE_RAG"`
	EnableSandbox   bool    `yaml:"enable_sandbox" env:"ENABLE_SANDBOX"`
	EnableHITL      bool    `yaml:"enable_hitl" env:"ENABLE_HITL"`
}

// RedisConfig configures short-term memory.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	PoolSize int    `yaml:"pool_size" env:"POOL_SIZE"`
}

// PostgresConfig configures long-term memory.
type PostgresConfig struct {
	Host         string        `yaml:"host" env:"HOST"`
	Port         int           `yaml:"port" env:"PORT"`
	User         string        `yaml:"user" env:"USER"`
	Password     string        `yaml:"password" env:"PASSWORD"`
	Name         string        `yaml:"name" env:"NAME"`
	SSLMode      string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnLifetime time.Duration `yaml:"conn_lifetime" env:"CONN_LIFETIME"`
}

// DSN renders the Postgres connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// WeaviateConfig configures the vector store.
type WeaviateConfig struct {
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	APIKey  string `yaml:"api_key" env:"API_KEY"`
	Class   string `yaml:"class" env:"CLASS"`
}

// LLMConfig configures the completion and embeddings clients.
type LLMConfig struct {
	Provider        string        `yaml:"provider" env:"PROVIDER"`
	APIKey          string        `yaml:"api_key" env:"API_KEY"`
	BaseURL         string        `yaml:"base_url" env:"BASE_URL"`
	Model           string        `yaml:"model" env:"MODEL"`
	Temperature     float64       `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens       int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	Timeout         time.Duration `yaml:"timeout" env:"TIMEOUT"`
	EmbeddingAPIKey string        `yaml:"embedding_api_key" env:"EMBEDDING_API_KEY"`
}

// ApprovalsConfig configures the human-approval policy.
type ApprovalsConfig struct {
	AutoApproveLowRisk      bool          `yaml:"auto_approve_low_risk" env:"AUTO_APPROVE_LOW_RISK"`
	AutoApproveMediumRisk   bool          `yaml:"auto_approve_medium_risk" env:"AUTO_APPROVE_MEDIUM_RISK"`
	RequireApprovalHighRisk bool          `yaml:"require_approval_high_risk" env:"REQUIRE_APPROVAL_HIGH_RISK"`
	Timeout                 time.Duration `yaml:"timeout" env:"TIMEOUT"`
	PollInterval            time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	NotificationChannels    []string      `yaml:"notification_channels" env:"NOTIFICATION_CHANNELS"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:            "cortex-agent",
			Model:           "claude-3-haiku-20240307",
			Temperature:     0.7,
			MaxTokens:       4096,
			EnableMemory:    true,
			EnableReasoning: true,
			EnableSandbox:   true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Postgres: PostgresConfig{
			Host:         "localhost",
			Port:         5432,
			User:         "cortex",
			Name:         "cortex",
			SSLMode:      "disable",
			MaxOpenConns: 100,
			MaxIdleConns: 10,
			ConnLifetime: time.Hour,
		},
		Weaviate: WeaviateConfig{
			BaseURL: "http://localhost:8080",
			Class:   "CortexMemory",
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-3-haiku-20240307",
			Temperature: 0.7,
			MaxTokens:   1024,
			Timeout:     60 * time.Second,
		},
		Approvals: ApprovalsConfig{
			AutoApproveLowRisk:      true,
			RequireApprovalHighRisk: true,
			Timeout:                 5 * time.Minute,
			PollInterval:            time.Second,
			NotificationChannels:    []string{"telegram"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Loader loads configuration with file and environment overrides.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader returns a loader with the CORTEX env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "CORTEX"}
}

// WithConfigPath sets the YAML file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix replaces the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load resolves the configuration. A missing config file falls back to
// defaults; a malformed one is an error.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []string

	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		errs = append(errs, "agent temperature must be in [0, 2]")
	}
	if c.Agent.MaxTokens <= 0 {
		errs = append(errs, "agent max_tokens must be positive")
	}
	if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
		errs = append(errs, "invalid postgres port")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level: %q", c.Log.Level))
	}
	if c.Approvals.PollInterval <= 0 {
		errs = append(errs, "approvals poll_interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
