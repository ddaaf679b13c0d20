// Package container provides dependency injection and lifecycle management
// for the budget workflow engine following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/budget-gate/internal/application/service"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database DatabaseConfig
	Lark     LarkConfig
	OpenAI   OpenAIConfig
	Anomaly  service.AnomalyConfig
	Worker   WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file, or the database name when InMemory is set
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration

	InMemory bool
}

// LarkConfig holds Lark API settings. An empty AppID disables delivery.
type LarkConfig struct {
	AppID     string
	AppSecret string

	// RoleChats maps workflow roles to group chat IDs
	RoleChats map[string]string

	// UserIDType is the receive_id_type used for direct messages
	UserIDType string
}

// OpenAIConfig holds OpenAI API settings. An empty APIKey disables narration.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration

	// PromptsPath optionally points at a YAML prompt override
	PromptsPath string
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	NotificationPollInterval time.Duration
	NotificationBatchSize    int

	// FailureBuffer is the capacity of the side-effect failure channel
	FailureBuffer int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/budget.db",
			MaxOpenConns:    8,
			MaxIdleConns:    4,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Lark: LarkConfig{
			UserIDType: "open_id",
		},
		OpenAI: OpenAIConfig{
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		Anomaly: service.DefaultAnomalyConfig(),
		Worker: WorkerConfig{
			NotificationPollInterval: 15 * time.Second,
			NotificationBatchSize:    20,
			FailureBuffer:            256,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Lark.AppID != "" && c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required when lark.app_id is set")
	}
	if c.Anomaly.Location == nil {
		return fmt.Errorf("anomaly location is required")
	}
	if c.Worker.FailureBuffer < 0 {
		return fmt.Errorf("worker.failure_buffer cannot be negative")
	}
	return nil
}
