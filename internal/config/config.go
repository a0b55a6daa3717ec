// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Simulation SimulationConfig `mapstructure:"simulation" yaml:"simulation"`
	Oracle     OracleConfig     `mapstructure:"oracle" yaml:"oracle"`
}

// LoggerConfig controls the zap logger and its file rotation.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// SimulationConfig is the knob set recognized by the simulation manager.
type SimulationConfig struct {
	EnableConcurrentExecution bool          `mapstructure:"enable_concurrent_execution" yaml:"enable_concurrent_execution"`
	EnableEmergentBehaviors   bool          `mapstructure:"enable_emergent_behaviors" yaml:"enable_emergent_behaviors"`
	SimulationDuration        time.Duration `mapstructure:"simulation_duration" yaml:"simulation_duration"`
	MaxAgentCycles            int           `mapstructure:"max_agent_cycles" yaml:"max_agent_cycles"`
	EnvironmentUpdateInterval time.Duration `mapstructure:"environment_update_interval" yaml:"environment_update_interval"`
	MessagePassingEnabled     bool          `mapstructure:"message_passing_enabled" yaml:"message_passing_enabled"`
	LearningEnabled           bool          `mapstructure:"learning_enabled" yaml:"learning_enabled"`
	ThreatGenerationEnabled   bool          `mapstructure:"threat_generation_enabled" yaml:"threat_generation_enabled"`
	// TerminationPollInterval bounds how quickly a termination condition is noticed.
	TerminationPollInterval time.Duration `mapstructure:"termination_poll_interval" yaml:"termination_poll_interval"`
}

// OracleProvider identifies a reasoning oracle backend.
type OracleProvider string

const (
	ProviderGemini   OracleProvider = "gemini"
	ProviderScripted OracleProvider = "scripted"
)

// OracleConfig configures the reasoning oracle client shared by all agents.
type OracleConfig struct {
	Provider    OracleProvider `mapstructure:"provider" yaml:"provider"`
	Model       string         `mapstructure:"model" yaml:"model"`
	APIKey      string         `mapstructure:"api_key" yaml:"api_key"`
	APITimeout  time.Duration  `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32        `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int            `mapstructure:"max_tokens" yaml:"max_tokens"`
	// RequestsPerSecond throttles outbound oracle calls across the whole run.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// NewDefaultConfig creates a configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "testbed")
	v.SetDefault("logger.log_file", "testbed.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Simulation --
	v.SetDefault("simulation.enable_concurrent_execution", true)
	v.SetDefault("simulation.enable_emergent_behaviors", true)
	v.SetDefault("simulation.simulation_duration", "60s")
	v.SetDefault("simulation.max_agent_cycles", 100)
	v.SetDefault("simulation.environment_update_interval", "500ms")
	v.SetDefault("simulation.message_passing_enabled", true)
	v.SetDefault("simulation.learning_enabled", true)
	v.SetDefault("simulation.threat_generation_enabled", true)
	v.SetDefault("simulation.termination_poll_interval", "100ms")

	// -- Oracle --
	v.SetDefault("oracle.provider", "scripted")
	v.SetDefault("oracle.model", "gemini-2.5-flash")
	v.SetDefault("oracle.api_timeout", "30s")
	v.SetDefault("oracle.temperature", 0.2)
	v.SetDefault("oracle.max_tokens", 2048)
	v.SetDefault("oracle.requests_per_second", 4.0)
}

// NewConfigFromViper creates a validated configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("oracle.api_key", "TESTBED_ORACLE_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation configuration invalid: %w", err)
	}
	if err := c.Oracle.Validate(); err != nil {
		return fmt.Errorf("oracle configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the SimulationConfig settings.
func (s *SimulationConfig) Validate() error {
	if s.SimulationDuration <= 0 {
		return fmt.Errorf("simulation_duration must be a positive duration")
	}
	if s.MaxAgentCycles <= 0 {
		return fmt.Errorf("max_agent_cycles must be greater than 0")
	}
	if s.EnvironmentUpdateInterval <= 0 {
		return fmt.Errorf("environment_update_interval must be a positive duration")
	}
	if s.TerminationPollInterval <= 0 {
		return fmt.Errorf("termination_poll_interval must be a positive duration")
	}
	return nil
}

// Validate checks the OracleConfig settings.
func (o *OracleConfig) Validate() error {
	switch o.Provider {
	case ProviderGemini:
		if o.Model == "" {
			return fmt.Errorf("oracle.model is required for the gemini provider")
		}
	case ProviderScripted:
		// No external requirements.
	default:
		return fmt.Errorf("unknown oracle provider: %s", o.Provider)
	}
	if o.APITimeout <= 0 {
		return fmt.Errorf("api_timeout must be a positive duration")
	}
	if o.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}
	return nil
}
