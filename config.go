package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quercus/engine"
	"quercus/logging"
)

// Config represents the application configuration
type Config struct {
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Features FeaturesConfig `json:"features" yaml:"features"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Output   OutputConfig   `json:"output" yaml:"output"`
	Lua      LuaConfig      `json:"lua" yaml:"lua"`
	Jobs     JobsConfig     `json:"jobs" yaml:"jobs"`
	REPL     REPLConfig     `json:"repl" yaml:"repl"`
}

// EngineConfig contains execution engine configuration
type EngineConfig struct {
	MaxExecutionTime  int      `json:"max_execution_time_seconds" yaml:"max_execution_time_seconds"`
	MaxCallDepth      int      `json:"max_call_depth" yaml:"max_call_depth"`
	MaxLoopIterations int      `json:"max_loop_iterations" yaml:"max_loop_iterations"`
	IncludePaths      []string `json:"include_paths" yaml:"include_paths"`
	Verbose           bool     `json:"verbose" yaml:"verbose"`
}

// FeaturesConfig declares the feature flags and the feature model
type FeaturesConfig struct {
	Declared []string `json:"declared" yaml:"declared"`
	Model    string   `json:"model,omitempty" yaml:"model,omitempty"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty" yaml:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty" yaml:"compress,omitempty"`
}

// OutputConfig selects how results are printed
type OutputConfig struct {
	// Format is text, json, msgpack or yaml
	Format string `json:"format" yaml:"format"`
	// PerConfiguration prints one block per configuration instead of the
	// conditional output
	PerConfiguration bool   `json:"per_configuration" yaml:"per_configuration"`
	File             string `json:"file,omitempty" yaml:"file,omitempty"`
}

// LuaConfig lists Lua scripts whose global functions become host functions
type LuaConfig struct {
	Scripts []string `json:"scripts" yaml:"scripts"`
}

// JobsConfig contains batch execution configuration
type JobsConfig struct {
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// REPLConfig contains REPL configuration
type REPLConfig struct {
	Prompt      string `json:"prompt" yaml:"prompt"`
	HistorySize int    `json:"history_size" yaml:"history_size"`
	HistoryFile string `json:"history_file" yaml:"history_file"`
	ShowWelcome bool   `json:"show_welcome" yaml:"show_welcome"`
	Colors      bool   `json:"colors" yaml:"colors"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxExecutionTime:  30,
			MaxCallDepth:      engine.DefaultMaxCallDepth,
			MaxLoopIterations: engine.DefaultMaxLoopIterations,
		},
		Logging: LoggingConfig{
			Level:  "warning",
			Format: "text",
		},
		Output: OutputConfig{
			Format: "text",
		},
		Jobs: JobsConfig{
			Concurrency: 4,
		},
		REPL: REPLConfig{
			Prompt:      "quercus> ",
			HistorySize: 1000,
			HistoryFile: "~/.quercus/history",
			ShowWelcome: true,
			Colors:      true,
		},
	}
}

// LoadConfig loads configuration from a file
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}
	path = expandHome(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %v", err)
		}
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %v", err)
		}
	}
	return config, nil
}

// SaveConfig saves configuration to a file
func SaveConfig(config *Config, path string) error {
	path = expandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON config: %v", err)
		}
	default:
		data, err = yaml.Marshal(config)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML config: %v", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %v", err)
	}
	return nil
}

// expandHome expands ~ to the user's home directory
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// EngineConfig returns the engine settings, with paths expanded
func (c *Config) EngineConfig() engine.ExecutionEngineConfig {
	includes := make([]string, len(c.Engine.IncludePaths))
	for i, p := range c.Engine.IncludePaths {
		includes[i] = expandHome(p)
	}
	scripts := make([]string, len(c.Lua.Scripts))
	for i, p := range c.Lua.Scripts {
		scripts[i] = expandHome(p)
	}
	return engine.ExecutionEngineConfig{
		Features:          c.Features.Declared,
		FeatureModel:      c.Features.Model,
		IncludePaths:      includes,
		LuaScripts:        scripts,
		MaxExecutionTime:  time.Duration(c.Engine.MaxExecutionTime) * time.Second,
		MaxCallDepth:      c.Engine.MaxCallDepth,
		MaxLoopIterations: c.Engine.MaxLoopIterations,
		Verbose:           c.Engine.Verbose,
	}
}

// NewLogger builds the logger described by the logging section. Logs go to
// stderr, or to a file that rotates when max_size_mb is set.
func (c *Config) NewLogger() (*logging.DefaultLogger, error) {
	formatter, err := logging.NewFormatter(c.Logging.Format)
	if err != nil {
		return nil, err
	}
	level := logging.ParseLevel(c.Logging.Level)
	if c.Engine.Verbose {
		level = logging.LevelDebug
	}

	var writer logging.Writer = logging.NewConsoleWriter()
	switch file := expandHome(c.Logging.File); {
	case file == "":
	case c.Logging.MaxSizeMB > 0:
		writer, err = logging.NewRotatingFileWriter(file, int64(c.Logging.MaxSizeMB)<<20,
			time.Duration(c.Logging.MaxAgeDays)*24*time.Hour, c.Logging.MaxBackups, c.Logging.Compress)
	default:
		writer, err = logging.NewFileWriter(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	return logging.NewDefaultLoggerWithConfig(logging.LoggerConfig{
		Level:     level,
		Formatter: formatter,
		Writers:   []logging.Writer{writer},
	}), nil
}
