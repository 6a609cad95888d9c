package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultEndpoint is the local OpenAI-compatible completions endpoint.
	DefaultEndpoint = "http://localhost:11434/v1/completions"

	// DefaultMaxTokens is the output token budget per model call.
	DefaultMaxTokens = 6000

	// DefaultTemperature is the sampling temperature for every call.
	DefaultTemperature = 0.7

	// DefaultDatabase is the sqlite file created under the output root.
	DefaultDatabase = "smart_contracts_analysis.db"

	// DefaultContractPattern selects contract files inside a directory.
	DefaultContractPattern = "*.sol"
)

// Config is the resolved configuration passed into components at
// construction time. Nothing reads model selection from global state.
type Config struct {
	Endpoint          string  `yaml:"endpoint"`
	MaxTokens         int     `yaml:"max_tokens"`
	Temperature       float64 `yaml:"temperature"`
	AnalysisModel     string  `yaml:"analysis_model"`
	QueryModel        string  `yaml:"query_model"`
	AllowCustomModels bool    `yaml:"allow_custom_models"`
	OutputRoot        string  `yaml:"output_root"`
	Database          string  `yaml:"database"`
	ContractPattern   string  `yaml:"contract_pattern"`
	StrictValidation  bool    `yaml:"strict_validation"`
	LogLevel          string  `yaml:"log_level"`
	LogFormat         string  `yaml:"log_format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Endpoint:        DefaultEndpoint,
		MaxTokens:       DefaultMaxTokens,
		Temperature:     DefaultTemperature,
		AnalysisModel:   DefaultModel,
		QueryModel:      DefaultModel,
		OutputRoot:      ".",
		Database:        DefaultDatabase,
		ContractPattern: DefaultContractPattern,
		LogLevel:        "warn",
		LogFormat:       "console",
	}
}

// Load resolves configuration from defaults, the YAML file at path (a
// missing file is not an error) and the environment.
// An empty path uses the standard config file location.
func Load(path string) (*Config, error) {
	if path == "" {
		path = GetPaths().ConfigFile
	}
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	cfg.mergeEnv(Env())
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(e *DeepCurrentEnv) {
	if e.Endpoint != "" {
		c.Endpoint = e.Endpoint
	}
	if e.AnalysisModel != "" {
		c.AnalysisModel = e.AnalysisModel
	}
	if e.QueryModel != "" {
		c.QueryModel = e.QueryModel
	}
	if e.MaxTokens > 0 {
		c.MaxTokens = e.MaxTokens
	}
	if e.OutputRoot != "" {
		c.OutputRoot = e.OutputRoot
	}
	if e.Database != "" {
		c.Database = e.Database
	}
	if e.LogLevel != "" {
		c.LogLevel = e.LogLevel
	}
	if e.Strict {
		c.StrictValidation = true
	}
}

// Validate checks the configuration before any component is built.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Endpoint) == "" {
		errs = append(errs, errors.New("endpoint is required"))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be within [0, 2], got %g", c.Temperature))
	}
	for _, m := range []struct{ field, value string }{
		{"analysis_model", c.AnalysisModel},
		{"query_model", c.QueryModel},
	} {
		switch {
		case m.value == "":
			errs = append(errs, fmt.Errorf("%s is required", m.field))
		case !c.AllowCustomModels && !IsKnownModel(m.value):
			errs = append(errs, fmt.Errorf("%s %q is not one of %s", m.field, m.value, strings.Join(Models, ", ")))
		}
	}
	if c.ContractPattern == "" {
		errs = append(errs, errors.New("contract_pattern is required"))
	}
	return errors.Join(errs...)
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// DefaultModel is used when no model is configured.
const DefaultModel = "deepseek-r1"

// Models is the fixed set of selectable models.
var Models = []string{
	"deepseek-r1",
	"qwen2.5-coder:3b",
	"gemma3:4b",
	"deepseek-coder:6.7b",
}

// IsKnownModel reports whether name is in the enumerated model set.
func IsKnownModel(name string) bool {
	return slices.Contains(Models, name)
}
