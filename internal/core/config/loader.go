package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	SinkFile     = "file"
	SinkRedis    = "redis"
	SinkPostgres = "postgres"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields. It is safe to call more than once.
func (c *AppConfig) ApplyDefaults() {
	d := &c.Dispatch
	if d.InputField == "" {
		d.InputField = "input"
	}
	if d.MaxInFlight == 0 {
		d.MaxInFlight = 64
	}
	if d.RequestTimeout == 0 {
		d.RequestTimeout = 60 * time.Second
	}
	if d.MaxBackoff == 0 {
		d.MaxBackoff = 5 * time.Minute
	}
	if d.Input != "" {
		if d.Output == "" {
			d.Output = DerivedPath(d.Input, "_results.jsonl")
		}
		if d.ErrorsOutput == "" {
			d.ErrorsOutput = DerivedPath(d.Input, "_errors.jsonl")
		}
	}

	if c.Template.SystemPrompt == "" {
		c.Template.SystemPrompt = "You are a helpful assistant."
	}
	if c.Template.Temperature == nil {
		t := 0.4
		c.Template.Temperature = &t
	}
	if c.Template.MaxTokens == 0 {
		c.Template.MaxTokens = 120
	}

	for i := range c.Endpoints {
		if c.Endpoints[i].Weight == nil {
			w := 1
			c.Endpoints[i].Weight = &w
		}
		if c.Endpoints[i].Name == "" {
			c.Endpoints[i].Name = fmt.Sprintf("endpoint-%d", i)
		}
	}

	if c.Sink.Type == "" {
		c.Sink.Type = SinkFile
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "dispatch"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "pgx"
	}
}

// Validate checks the fields the pipeline cannot run without.
func (c *AppConfig) Validate() error {
	var errs []error
	d := c.Dispatch
	if d.Input == "" {
		errs = append(errs, errors.New("dispatch.input is required"))
	}
	if d.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("dispatch.requests_per_second must be positive"))
	}
	if d.MaxAttempts < 1 {
		errs = append(errs, errors.New("dispatch.max_attempts must be at least 1"))
	}
	if d.MaxInFlight < 1 {
		errs = append(errs, errors.New("dispatch.max_in_flight must be at least 1"))
	}
	if len(c.Endpoints) == 0 {
		errs = append(errs, errors.New("at least one endpoint is required"))
	}
	for i, ep := range c.Endpoints {
		if ep.URL == "" {
			errs = append(errs, fmt.Errorf("endpoints[%d].url is required", i))
		}
		if ep.Weight != nil && *ep.Weight < 0 {
			errs = append(errs, fmt.Errorf("endpoints[%d].weight must not be negative", i))
		}
	}
	switch c.Sink.Type {
	case SinkFile:
	case SinkRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis sink"))
		}
	case SinkPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sink type %q", c.Sink.Type))
	}
	return errors.Join(errs...)
}

// DerivedPath swaps a trailing ".jsonl" for suffix, or appends suffix.
func DerivedPath(input, suffix string) string {
	if base, ok := strings.CutSuffix(input, ".jsonl"); ok {
		return base + suffix
	}
	return input + suffix
}
