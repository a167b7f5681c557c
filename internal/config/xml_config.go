// Package config provides XML-based configuration management for the
// vessel tracking server.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"VesselTracker"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Database configuration
	Database DatabaseConfig `xml:"Database"`

	// AIS provider configuration
	AIS AISConfig `xml:"AIS"`

	// Security configuration
	Security SecurityConfig `xml:"Security"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// DatabaseConfig contains DuckDB storage settings
type DatabaseConfig struct {
	DataDirectory string `xml:"DataDirectory"`
	DatabaseFile  string `xml:"DatabaseFile"`
	MemoryLimit   string `xml:"MemoryLimit"`
	Threads       int    `xml:"Threads"`
}

// AISConfig contains the external AIS lookup provider settings.
// The throttle window and per-vessel credit cost mirror the provider's
// metering but are not provider-mandated minimums; both are tunable.
type AISConfig struct {
	BaseURL               string `xml:"BaseURL"`
	APIKey                string `xml:"APIKey"`
	ThrottleHours         int    `xml:"ThrottleHours"`
	CreditsPerVessel      int    `xml:"CreditsPerVessel"`
	CallDelayMs           int    `xml:"CallDelayMilliseconds"`
	RequestTimeoutSeconds int    `xml:"RequestTimeoutSeconds"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	CronToken   string `xml:"CronToken"` // bearer token for the cron trigger endpoint
	RequireAuth bool   `xml:"RequireAuthentication"`
	AuthToken   string `xml:"AuthToken"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
	HistoryPointLimit    int    `xml:"HistoryPointLimit"` // max track points per vessel on the active-vessels read
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 60,
			IdleTimeout:  120,
			BodyLimit:    "16M",
		},
		Database: DatabaseConfig{
			DataDirectory: "./data",
			DatabaseFile:  "tracking.duckdb",
			MemoryLimit:   "512MB",
			Threads:       2,
		},
		AIS: AISConfig{
			BaseURL:               "",
			APIKey:                "",
			ThrottleHours:         24,
			CreditsPerVessel:      5,
			CallDelayMs:           500,
			RequestTimeoutSeconds: 10,
		},
		Security: SecurityConfig{
			CronToken:   "",
			RequireAuth: false,
			AuthToken:   "",
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
			HistoryPointLimit:    1000,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		config.applyEnvironmentOverrides()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &AppConfig{}
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Vessel Tracker Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config
// values. The AIS credentials are the values most often injected this way in
// deployment; they are still read once at startup, never at call time.
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Database.DataDirectory = dataDir
	}

	if baseURL := os.Getenv("VESSEL_API_BASE_URL"); baseURL != "" {
		c.AIS.BaseURL = baseURL
	}

	if apiKey := os.Getenv("VESSEL_API_KEY"); apiKey != "" {
		c.AIS.APIKey = apiKey
	}

	if token := os.Getenv("CRON_SECRET"); token != "" {
		c.Security.CronToken = token
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Database.DataDirectory) {
		c.Database.DataDirectory = filepath.Join(configDir, c.Database.DataDirectory)
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Database.DataDirectory
}

// GetDatabasePath returns the absolute DuckDB file path
func (c *AppConfig) GetDatabasePath() string {
	return filepath.Join(c.Database.DataDirectory, c.Database.DatabaseFile)
}

// GetSeedPath returns the bundled vessel identifier seed file path
func (c *AppConfig) GetSeedPath() string {
	return filepath.Join(c.Database.DataDirectory, "defaults", "vessels.yaml")
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// ThrottleWindow returns the AIS throttle window as a duration.
func (c *AppConfig) ThrottleWindow() time.Duration {
	hours := c.AIS.ThrottleHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// CallDelay returns the fixed delay between consecutive AIS lookups.
func (c *AppConfig) CallDelay() time.Duration {
	if c.AIS.CallDelayMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.AIS.CallDelayMs) * time.Millisecond
}

// RequestTimeout returns the per-call AIS request timeout.
func (c *AppConfig) RequestTimeout() time.Duration {
	if c.AIS.RequestTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.AIS.RequestTimeoutSeconds) * time.Second
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Database.DataDirectory,
		filepath.Join(c.Database.DataDirectory, "defaults"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
