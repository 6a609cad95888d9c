// Package config provides centralized configuration management.
// Values come from built-in defaults, an optional YAML file, DEEPCURRENT_*
// environment variables and finally command-line flags, in that order.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// DeepCurrentEnv holds all DeepCurrent environment variables.
type DeepCurrentEnv struct {
	// Home overrides the state directory (DEEPCURRENT_HOME)
	Home string

	// Endpoint is the completion endpoint URL (DEEPCURRENT_ENDPOINT)
	Endpoint string

	// AnalysisModel is the model used for the four pipeline phases (DEEPCURRENT_ANALYSIS_MODEL)
	AnalysisModel string

	// QueryModel is the model used to answer queries (DEEPCURRENT_QUERY_MODEL)
	QueryModel string

	// MaxTokens is the output token budget per call (DEEPCURRENT_MAX_TOKENS)
	MaxTokens int

	// OutputRoot is where session directories are created (DEEPCURRENT_OUTPUT)
	OutputRoot string

	// Database is the sqlite database path (DEEPCURRENT_DB)
	Database string

	// LogLevel is the minimum log level (DEEPCURRENT_LOG_LEVEL)
	LogLevel string

	// Strict enables fenced-block extraction before diagram validation (DEEPCURRENT_STRICT)
	Strict bool
}

var (
	env     *DeepCurrentEnv
	envOnce sync.Once
)

// Env returns the singleton environment configuration.
// Thread-safe, loads once on first call.
func Env() *DeepCurrentEnv {
	envOnce.Do(func() {
		env = &DeepCurrentEnv{
			Home:          os.Getenv("DEEPCURRENT_HOME"),
			Endpoint:      os.Getenv("DEEPCURRENT_ENDPOINT"),
			AnalysisModel: os.Getenv("DEEPCURRENT_ANALYSIS_MODEL"),
			QueryModel:    os.Getenv("DEEPCURRENT_QUERY_MODEL"),
			MaxTokens:     getEnvInt("DEEPCURRENT_MAX_TOKENS", 0),
			OutputRoot:    os.Getenv("DEEPCURRENT_OUTPUT"),
			Database:      os.Getenv("DEEPCURRENT_DB"),
			LogLevel:      os.Getenv("DEEPCURRENT_LOG_LEVEL"),
			Strict:        os.Getenv("DEEPCURRENT_STRICT") == "1",
		}
	})
	return env
}

// ResetEnv resets the cached environment (for testing).
func ResetEnv() {
	envOnce = sync.Once{}
	env = nil
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

// Paths holds standard DeepCurrent file locations.
type Paths struct {
	// Home is the state directory (~/.deepcurrent)
	Home string

	// ConfigFile is the YAML config file (~/.deepcurrent/config.yaml)
	ConfigFile string

	// Logs is the log directory (~/.deepcurrent/logs)
	Logs string
}

// GetPaths resolves the standard paths, honouring DEEPCURRENT_HOME.
func GetPaths() *Paths {
	home := Env().Home
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			userHome = "."
		}
		home = filepath.Join(userHome, ".deepcurrent")
	}
	return &Paths{
		Home:       home,
		ConfigFile: filepath.Join(home, "config.yaml"),
		Logs:       filepath.Join(home, "logs"),
	}
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
