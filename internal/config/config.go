// Package config provides YAML-based configuration management with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides (INSIGHT_PORT, ...).
const EnvPrefix = "INSIGHT"

// AppConfig represents the root configuration structure
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Storage    StorageConfig    `yaml:"storage"`
	Processing ProcessingConfig `yaml:"processing"`
	Advanced   AdvancedConfig   `yaml:"advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `yaml:"port" validate:"gte=1,lte=65535"`
	BindAddress  string `yaml:"bind_address"`
	EnableCORS   bool   `yaml:"enable_cors"`
	AllowOrigins string `yaml:"allow_origins"`
	ReadTimeout  int    `yaml:"read_timeout_seconds" validate:"gte=0"`
	WriteTimeout int    `yaml:"write_timeout_seconds" validate:"gte=0"`
	IdleTimeout  int    `yaml:"idle_timeout_seconds" validate:"gte=0"`
	BodyLimit    string `yaml:"body_limit"`
}

// AnalysisConfig describes the external analysis endpoint
type AnalysisConfig struct {
	EndpointURL       string `yaml:"endpoint_url" validate:"required,url"`
	TimeoutSeconds    int    `yaml:"timeout_seconds" validate:"gte=1"`
	AllowedExtensions string `yaml:"allowed_extensions"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory      string `yaml:"data_directory" validate:"required"`
	UploadsDirectory   string `yaml:"uploads_directory" validate:"required"`
	RecentFilesLimit   int    `yaml:"recent_files_limit" validate:"gte=1"`
	FileRetentionHours int    `yaml:"file_retention_hours" validate:"gte=0"` // 0 keeps uploads forever
}

// ProcessingConfig contains job housekeeping settings
type ProcessingConfig struct {
	JobRetentionMinutes    int  `yaml:"job_retention_minutes" validate:"gte=1"`
	CleanupIntervalMinutes int  `yaml:"cleanup_interval_minutes" validate:"gte=1"`
	EnableCompression      bool `yaml:"enable_compression"`
	CompressionLevel       int  `yaml:"compression_level" validate:"gte=-1,lte=9"`
}

// AdvancedConfig contains logging and tuning options
type AdvancedConfig struct {
	LogLevel             string `yaml:"log_level" validate:"oneof=debug info warn error"`
	EnableRequestLogging bool   `yaml:"enable_request_logging"`
	EnableMetrics        bool   `yaml:"enable_metrics"`
}

// envOverrides lists the settings that may be overridden from the
// environment. Zero values mean "not set".
type envOverrides struct {
	Port            int           `envconfig:"PORT"`
	BindAddress     string        `envconfig:"BIND_ADDRESS"`
	AnalysisURL     string        `envconfig:"ANALYSIS_URL"`
	AnalysisTimeout time.Duration `envconfig:"ANALYSIS_TIMEOUT"`
	DataDir         string        `envconfig:"DATA_DIR"`
	LogLevel        string        `envconfig:"LOG_LEVEL"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 120,
			IdleTimeout:  120,
			BodyLimit:    "200M",
		},
		Analysis: AnalysisConfig{
			EndpointURL:       "http://localhost:5000/api/upload",
			TimeoutSeconds:    120,
			AllowedExtensions: ".csv",
		},
		Storage: StorageConfig{
			DataDirectory:      "./data",
			UploadsDirectory:   "./data/uploads",
			RecentFilesLimit:   20,
			FileRetentionHours: 24,
		},
		Processing: ProcessingConfig{
			JobRetentionMinutes:    30,
			CleanupIntervalMinutes: 5,
			EnableCompression:      true,
			CompressionLevel:       5,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
			EnableMetrics:        true,
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file is created
// with defaults.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := config.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}

	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Insight dashboard configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks field constraints.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides lets INSIGHT_* (or the bare name, e.g. PORT)
// environment variables override file values
func (c *AppConfig) applyEnvironmentOverrides() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}

	if env.Port != 0 {
		c.Server.Port = env.Port
	}
	if env.BindAddress != "" {
		c.Server.BindAddress = env.BindAddress
	}
	if env.AnalysisURL != "" {
		c.Analysis.EndpointURL = env.AnalysisURL
	}
	if env.AnalysisTimeout > 0 {
		c.Analysis.TimeoutSeconds = int(env.AnalysisTimeout.Seconds())
	}
	if env.DataDir != "" {
		c.Storage.DataDirectory = env.DataDir
		c.Storage.UploadsDirectory = filepath.Join(env.DataDir, "uploads")
	}
	if env.LogLevel != "" {
		c.Advanced.LogLevel = strings.ToLower(env.LogLevel)
	}
	return nil
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.UploadsDirectory) {
		c.Storage.UploadsDirectory = filepath.Join(configDir, c.Storage.UploadsDirectory)
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// AnalysisTimeout returns the upstream request timeout.
func (c *AppConfig) AnalysisTimeout() time.Duration {
	return time.Duration(c.Analysis.TimeoutSeconds) * time.Second
}

// AllowedExtensions returns the lower-cased upload extensions, e.g. ".csv".
func (c *AppConfig) AllowedExtensions() []string {
	var exts []string
	for _, ext := range strings.Split(c.Analysis.AllowedExtensions, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return exts
}

// FileRetention returns how long uploads are kept, or 0 to keep them.
func (c *AppConfig) FileRetention() time.Duration {
	return time.Duration(c.Storage.FileRetentionHours) * time.Hour
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
