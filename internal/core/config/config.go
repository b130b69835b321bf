package config

import (
	"time"

	redisclient "github.com/vietddude/dispatch/internal/infra/redis"
	"github.com/vietddude/dispatch/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Dispatch  DispatchConfig     `yaml:"dispatch"`
	Template  TemplateConfig     `yaml:"template"`
	Endpoints []EndpointConfig   `yaml:"endpoints"`
	Sink      SinkConfig         `yaml:"sink"`
	Redis     redisclient.Config `yaml:"redis"`
	Database  postgres.Config    `yaml:"database"`
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
}

// DispatchConfig holds the pipeline settings.
type DispatchConfig struct {
	Input             string        `yaml:"input"`
	Output            string        `yaml:"output"`        // default: <input>_results.jsonl
	ErrorsOutput      string        `yaml:"errors_output"` // default: <input>_errors.jsonl
	InputField        string        `yaml:"input_field"`
	RequestsPerSecond int           `yaml:"requests_per_second"`
	MaxAttempts       int           `yaml:"max_attempts"`
	MaxInFlight       int           `yaml:"max_in_flight"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
}

// TemplateConfig shapes the chat payload sent upstream.
type TemplateConfig struct {
	Model        string   `yaml:"model"`
	SystemPrompt string   `yaml:"system_prompt"`
	Temperature  *float64 `yaml:"temperature"`
	MaxTokens    int      `yaml:"max_tokens"`
}

// EndpointConfig holds settings for an upstream endpoint.
type EndpointConfig struct {
	Name   string  `yaml:"name"`
	URL    string  `yaml:"url"`
	APIKey string  `yaml:"api_key"`
	Weight *int    `yaml:"weight"` // nil = 1, 0 = fallback only
	QPS    float64 `yaml:"qps"`    // 0 = unlimited
}

// SinkConfig selects where outcomes are recorded besides the local files.
type SinkConfig struct {
	Type string `yaml:"type"` // file, redis, postgres
}

// ServerConfig holds health/metrics HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"` // 0 = disabled
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
