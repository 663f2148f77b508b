package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Plex
	PlexBaseURL string
	PlexToken   string
	DryRun      bool // Log instead of marking items unwatched

	// Library sections used by seeded actions
	DefaultMovieSection string
	DefaultShowSection  string

	// Scheduling
	RunSchedule      string        // Cron expression for the daemon (default: "0 6 * * *")
	LookaheadLimit   int           // Series actions checked when nothing is due (default: 10)
	LeapDayMaxSearch int           // Extra years searched for the next Feb 29 (default: 8)
	CallTimeout      time.Duration // Timeout for each media server call (default: 30s)

	// Server
	ServerPort string

	// Paths
	ConfigDir    string
	DatabaseFile string // $CONFIG_DIR/plexschedule.db

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables, a .env file and
// an optional config.yml in the config directory
func Load() (*Config, error) {
	v := viper.New()

	// Setup viper FIRST to load .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = v.ReadInConfig()

	setDefaults(v)

	configDir, err := resolveConfigDir(v.GetString("CONFIG_DIR"))
	if err != nil {
		return nil, err
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	// config.yml holds the Plex credentials written at bootstrap
	yamlPath := filepath.Join(configDir, "config.yml")
	if _, err := os.Stat(yamlPath); err == nil {
		v.SetConfigFile(yamlPath)
		v.SetConfigType("yaml")
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", yamlPath, err)
		}
	}

	return fromViper(v, configDir), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("RUN_SCHEDULE", "0 6 * * *")
	v.SetDefault("LOOKAHEAD_LIMIT", 10)
	v.SetDefault("LEAP_DAY_MAX_SEARCH", 8)
	v.SetDefault("CALL_TIMEOUT_SECONDS", 30)
	v.SetDefault("DEFAULT_MOVIE_SECTION", "Movies")
	v.SetDefault("DEFAULT_SHOW_SECTION", "TV Shows")
	v.SetDefault("DRY_RUN", false)
}

func resolveConfigDir(configDir string) (string, error) {
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", "plexschedule"), nil
	}

	// Convert relative path to absolute path
	absPath, err := filepath.Abs(configDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
	}
	return absPath, nil
}

func fromViper(v *viper.Viper, configDir string) *Config {
	return &Config{
		// Plex
		PlexBaseURL: v.GetString("PLEX_BASEURL"),
		PlexToken:   v.GetString("PLEX_TOKEN"),
		DryRun:      v.GetBool("DRY_RUN"),

		// Sections
		DefaultMovieSection: v.GetString("DEFAULT_MOVIE_SECTION"),
		DefaultShowSection:  v.GetString("DEFAULT_SHOW_SECTION"),

		// Scheduling
		RunSchedule:      v.GetString("RUN_SCHEDULE"),
		LookaheadLimit:   v.GetInt("LOOKAHEAD_LIMIT"),
		LeapDayMaxSearch: v.GetInt("LEAP_DAY_MAX_SEARCH"),
		CallTimeout:      time.Duration(v.GetInt("CALL_TIMEOUT_SECONDS")) * time.Second,

		// Server
		ServerPort: v.GetString("SERVER_PORT"),

		// Paths
		ConfigDir:    configDir,
		DatabaseFile: filepath.Join(configDir, "plexschedule.db"),

		// Logging
		LogLevel: v.GetString("LOG_LEVEL"),
	}
}

// ValidatePlex checks the settings needed to talk to the media server
func (c *Config) ValidatePlex() error {
	if c.PlexBaseURL == "" {
		return fmt.Errorf("PLEX_BASEURL is required")
	}
	if c.PlexToken == "" {
		return fmt.Errorf("PLEX_TOKEN is required")
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("CALL_TIMEOUT_SECONDS must be positive")
	}
	return nil
}
