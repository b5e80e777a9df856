package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ErrConfigNotFound is returned when the config file is not found by Load.
var ErrConfigNotFound = errors.New("configuration file not found")

// DefaultBaseURL is the hosted Tone backend
const DefaultBaseURL = "https://api.tonehq.ai"

// EnvPrefix prefixes every environment override
const EnvPrefix = "TONECTL"

// Config represents the application configuration
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Signup   SignupConfig   `mapstructure:"signup"`
	MCP      MCPConfig      `mapstructure:"mcp"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Profiles ProfilesConfig `mapstructure:"profiles"`
}

// APIConfig points the client at a backend
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SignupConfig tunes the signup page
type SignupConfig struct {
	OrgCheckDebounce time.Duration `mapstructure:"org_check_debounce"`
}

// MCPConfig represents MCP protocol settings
type MCPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit RateLimit     `mapstructure:"rate_limit"`
}

// RateLimit represents rate limiting configuration
type RateLimit struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// SecurityConfig represents security settings
type SecurityConfig struct {
	BatchMode           bool          `mapstructure:"batch_mode"`
	AutoApprove         bool          `mapstructure:"auto_approve"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
	PassphraseHash      string        `mapstructure:"passphrase_hash"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// ProfilesConfig represents profile settings
type ProfilesConfig struct {
	Default string `mapstructure:"default"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: 30 * time.Second,
		},
		Signup: SignupConfig{
			OrgCheckDebounce: 500 * time.Millisecond,
		},
		MCP: MCPConfig{
			Timeout: 30 * time.Second,
			RateLimit: RateLimit{
				RequestsPerMinute: 60,
			},
		},
		Security: SecurityConfig{
			ConfirmationTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Profiles: ProfilesConfig{
			Default: "default",
		},
	}
}

// Load loads configuration from file. An empty configFile means
// config.yaml in the config directory.
func Load(configFile string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	configDir := getConfigDir()
	if configFile == "" {
		configFile = filepath.Join(configDir, "config.yaml")
	}
	v.SetConfigFile(configFile)

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, ErrConfigNotFound
	}

	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var vfnfError viper.ConfigFileNotFoundError
		if errors.As(err, &vfnfError) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config file content: %w", err)
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Logging.File == "" {
		config.Logging.File = filepath.Join(configDir, "audit.log")
	}
	if IsRunningInDocker() {
		config.Security.BatchMode = true
	}

	return config, config.Validate()
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	_ = v.BindEnv("api.base_url", EnvPrefix+"_API_URL")
	_ = v.BindEnv("api.timeout", EnvPrefix+"_API_TIMEOUT")
	_ = v.BindEnv("security.batch_mode", EnvPrefix+"_BATCH_MODE")
	_ = v.BindEnv("security.auto_approve", EnvPrefix+"_AUTO_APPROVE")
	_ = v.BindEnv("logging.level", EnvPrefix+"_LOG_LEVEL")
	_ = v.BindEnv("profiles.default", EnvPrefix+"_PROFILE")
}

// Validate rejects settings no command can run with
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url cannot be empty")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.Signup.OrgCheckDebounce < 0 {
		return fmt.Errorf("signup.org_check_debounce cannot be negative")
	}
	if c.MCP.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("mcp.rate_limit.requests_per_minute cannot be negative")
	}
	return nil
}

// Save saves configuration to file
func (c *Config) Save(configFile string) error {
	if configFile == "" {
		configFile = filepath.Join(getConfigDir(), "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	v.Set("api.base_url", c.API.BaseURL)
	v.Set("api.timeout", c.API.Timeout)
	v.Set("signup.org_check_debounce", c.Signup.OrgCheckDebounce)
	v.Set("mcp.timeout", c.MCP.Timeout)
	v.Set("mcp.rate_limit.requests_per_minute", c.MCP.RateLimit.RequestsPerMinute)
	v.Set("security.batch_mode", c.Security.BatchMode)
	v.Set("security.auto_approve", c.Security.AutoApprove)
	v.Set("security.confirmation_timeout", c.Security.ConfirmationTimeout)
	v.Set("security.passphrase_hash", c.Security.PassphraseHash)
	v.Set("logging.level", c.Logging.Level)
	v.Set("logging.file", c.Logging.File)
	v.Set("profiles.default", c.Profiles.Default)

	return v.WriteConfig()
}

// SaveDefault saves configuration to the default location
func (c *Config) SaveDefault() error {
	return c.Save("")
}

// getConfigDir returns the configuration directory
func getConfigDir() string {
	if configDir := os.Getenv(EnvPrefix + "_CONFIG_DIR"); configDir != "" {
		return configDir
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".tone", "tonectl")
	}

	return filepath.Join(homeDir, ".tone", "tonectl")
}

// GetConfigDir returns the configuration directory (exported)
func GetConfigDir() string {
	return getConfigDir()
}

// EnsureConfigDir ensures the configuration directory exists
func EnsureConfigDir() error {
	return os.MkdirAll(getConfigDir(), 0700)
}

// LoadOrCreate loads existing config or writes and returns the defaults
func LoadOrCreate(configFile string) (*Config, error) {
	cfg, err := Load(configFile)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, ErrConfigNotFound) {
		return nil, err
	}

	cfg = DefaultConfig()
	if configFile == "" {
		configFile = filepath.Join(getConfigDir(), "config.yaml")
	}
	cfg.Logging.File = filepath.Join(filepath.Dir(configFile), "audit.log")

	if errSave := cfg.Save(configFile); errSave != nil {
		return nil, fmt.Errorf("failed to save default config to %s: %w", configFile, errSave)
	}
	if IsRunningInDocker() {
		cfg.Security.BatchMode = true
	}
	return cfg, nil
}
