// Copyright 2025 MH Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Generation GenerationConfig `mapstructure:"generation"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Crisis     CrisisConfig     `mapstructure:"crisis"`
	Session    SessionConfig    `mapstructure:"session"`
	Index      IndexConfig      `mapstructure:"index"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// OpenAIConfig contains OpenAI API configuration
type OpenAIConfig struct {
	APIKey     string `mapstructure:"apikey"`
	EmbedModel string `mapstructure:"embed_model"`
}

// GenerationConfig contains response generation settings
type GenerationConfig struct {
	Backend        string  `mapstructure:"backend"`
	Model          string  `mapstructure:"model"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// RetrievalConfig contains retrieval and context assembly settings
type RetrievalConfig struct {
	TopK            int `mapstructure:"top_k"`
	MaxHistoryTurns int `mapstructure:"max_history_turns"`
	MaxContextChars int `mapstructure:"max_context_chars"`
	MaxChunkChars   int `mapstructure:"max_chunk_chars"`
}

// CrisisConfig contains crisis detection settings
type CrisisConfig struct {
	ElevatedStreak      int `mapstructure:"elevated_streak"`
	StreakWindowMinutes int `mapstructure:"streak_window_minutes"`
}

// SessionConfig contains session store configuration
type SessionConfig struct {
	StorageType            string `mapstructure:"storage_type"`
	DBPath                 string `mapstructure:"db_path"`
	DefaultTTLMinutes      int    `mapstructure:"default_ttl_minutes"`
	MaxSessions            int    `mapstructure:"max_sessions"`
	CleanupIntervalMinutes int    `mapstructure:"cleanup_interval_minutes"`
}

// IndexConfig contains knowledge index configuration
type IndexConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath       string
	ValidateRequired bool
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over config file values.
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := setConfigFile(v, opts.ConfigPath); err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("MH_ASSISTANT")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error if env vars are set
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")

	v.SetDefault("openai.embed_model", "text-embedding-3-small")

	v.SetDefault("generation.backend", "openai")
	v.SetDefault("generation.model", "gpt-4o")
	v.SetDefault("generation.max_tokens", 1000)
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("generation.timeout_seconds", 30)

	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.max_history_turns", 10)
	v.SetDefault("retrieval.max_context_chars", 6000)
	v.SetDefault("retrieval.max_chunk_chars", 1200)

	v.SetDefault("crisis.elevated_streak", 3)
	v.SetDefault("crisis.streak_window_minutes", 10)

	v.SetDefault("session.storage_type", "memory")
	v.SetDefault("session.db_path", "./sessions.db")
	v.SetDefault("session.default_ttl_minutes", 30)
	v.SetDefault("session.max_sessions", 1000)
	v.SetDefault("session.cleanup_interval_minutes", 5)

	v.SetDefault("index.db_path", "./knowledge.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// setConfigFile sets the configuration file path with fallback logic
func setConfigFile(v *viper.Viper, configPath string) error {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			return nil
		}
	}

	// Default fallback locations; missing file is tolerated because env
	// vars can carry the full configuration.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	return nil
}

// setEnvironmentMappings sets explicit environment variable mappings
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"OPENAI_API_KEY":  "openai.apikey",
		"SESSION_DB_PATH": "session.db_path",
		"INDEX_DB_PATH":   "index.db_path",
		"LOG_LEVEL":       "logging.level",
		"LOG_FORMAT":      "logging.format",
		"LOG_OUTPUT":      "logging.output",
		"PORT":            "server.port",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// validateConfig validates the configuration for required fields and valid values
func validateConfig(config *Config) error {
	var errors []ValidationError

	if config.Generation.Backend == "openai" && config.OpenAI.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "openai.apikey",
			Message: "OpenAI API key is required for the openai backend. Set via config file or OPENAI_API_KEY environment variable",
		})
	}

	validBackends := []string{"openai", "canned"}
	if !contains(validBackends, config.Generation.Backend) {
		errors = append(errors, ValidationError{
			Field:   "generation.backend",
			Message: fmt.Sprintf("backend must be one of: %s", strings.Join(validBackends, ", ")),
		})
	}

	if config.Generation.MaxTokens <= 0 {
		errors = append(errors, ValidationError{
			Field:   "generation.max_tokens",
			Message: "max_tokens must be greater than 0",
		})
	}

	if config.Generation.Temperature < 0 || config.Generation.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "generation.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if config.Generation.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "generation.timeout_seconds",
			Message: "timeout_seconds must be greater than 0",
		})
	}

	if config.Retrieval.TopK <= 0 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be greater than 0",
		})
	}

	if config.Retrieval.MaxHistoryTurns <= 0 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.max_history_turns",
			Message: "max_history_turns must be greater than 0",
		})
	}

	if config.Crisis.ElevatedStreak < 2 {
		errors = append(errors, ValidationError{
			Field:   "crisis.elevated_streak",
			Message: "elevated_streak must be at least 2",
		})
	}

	validStorageTypes := []string{"memory", "sqlite"}
	if !contains(validStorageTypes, config.Session.StorageType) {
		errors = append(errors, ValidationError{
			Field:   "session.storage_type",
			Message: fmt.Sprintf("storage type must be one of: %s", strings.Join(validStorageTypes, ", ")),
		})
	}

	if config.Session.StorageType == "sqlite" && config.Session.DBPath == "" {
		errors = append(errors, ValidationError{
			Field:   "session.db_path",
			Message: "session database path is required for sqlite storage",
		})
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	if len(errors) > 0 {
		var errorMessages []string
		for _, err := range errors {
			errorMessages = append(errorMessages, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errorMessages, "\n"))
	}

	return nil
}

// MaskSensitiveValues returns a copy of the config with sensitive values masked
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c

	if masked.OpenAI.APIKey != "" {
		masked.OpenAI.APIKey = maskValue(masked.OpenAI.APIKey)
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 8 characters
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:8] + strings.Repeat("*", len(value)-8)
}

// contains checks if a slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// WatchConfig enables configuration hot-reloading for development
func WatchConfig(configPath string, callback func(*Config)) error {
	v := viper.New()

	if err := setConfigFile(v, configPath); err != nil {
		return err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		config, err := LoadWithOptions(LoadOptions{
			ConfigPath:       configPath,
			ValidateRequired: true,
		})
		if err != nil {
			fmt.Printf("Failed to reload config after change to %s: %v\n", e.Name, err)
			return
		}
		callback(config)
	})

	return nil
}
