package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Anomaly  AnomalyConfig  `mapstructure:"anomaly"`
	Lark     LarkConfig     `mapstructure:"lark"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// AnomalyConfig holds the virtual auditor thresholds
type AnomalyConfig struct {
	FailedLoginWindow      time.Duration `mapstructure:"failed_login_window"`
	FailedLoginThreshold   int           `mapstructure:"failed_login_threshold"`
	ExpenseWindow          time.Duration `mapstructure:"expense_window"`
	ExpenseAmountThreshold string        `mapstructure:"expense_amount_threshold"`
	ExpenseCountThreshold  int           `mapstructure:"expense_count_threshold"`
	AfterHoursWindow       time.Duration `mapstructure:"after_hours_window"`
	AfterHoursThreshold    int           `mapstructure:"after_hours_threshold"`
	WorkdayStartHour       int           `mapstructure:"workday_start_hour"`
	WorkdayEndHour         int           `mapstructure:"workday_end_hour"`
	Timezone               string        `mapstructure:"timezone"`
}

// LarkConfig holds Lark API configuration. Notifications stay queued when app_id is empty.
type LarkConfig struct {
	AppID      string            `mapstructure:"app_id"`
	AppSecret  string            `mapstructure:"app_secret"`
	RoleChats  map[string]string `mapstructure:"role_chats"`
	UserIDType string            `mapstructure:"user_id_type"`
}

// OpenAIConfig holds OpenAI API configuration. Narration is disabled when api_key is empty.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PromptsPath string        `mapstructure:"prompts_path"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	NotificationPollInterval time.Duration `mapstructure:"notification_poll_interval"`
	NotificationBatchSize    int           `mapstructure:"notification_batch_size"`
	FailureBuffer            int           `mapstructure:"failure_buffer"`
}

// Load loads configuration from file and environment variables. A .env file
// in the working directory is read first when present.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.path", "data/budget.db")
	v.SetDefault("database.max_open_conns", 8)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("anomaly.failed_login_window", 24*time.Hour)
	v.SetDefault("anomaly.failed_login_threshold", 5)
	v.SetDefault("anomaly.expense_window", 7*24*time.Hour)
	v.SetDefault("anomaly.expense_amount_threshold", "100000")
	v.SetDefault("anomaly.expense_count_threshold", 50)
	v.SetDefault("anomaly.after_hours_window", 7*24*time.Hour)
	v.SetDefault("anomaly.after_hours_threshold", 3)
	v.SetDefault("anomaly.workday_start_hour", 6)
	v.SetDefault("anomaly.workday_end_hour", 22)
	v.SetDefault("anomaly.timezone", "Local")

	v.SetDefault("lark.user_id_type", "open_id")

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("openai.max_tokens", 400)
	v.SetDefault("openai.timeout", 60*time.Second)

	v.SetDefault("worker.notification_poll_interval", 15*time.Second)
	v.SetDefault("worker.notification_batch_size", 20)
	v.SetDefault("worker.failure_buffer", 256)
}

// bindEnvVars binds credentials to their conventional environment variables
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"lark.app_id":     "LARK_APP_ID",
		"lark.app_secret": "LARK_APP_SECRET",
		"openai.api_key":  "OPENAI_API_KEY",
		"openai.base_url": "OPENAI_BASE_URL",
		"database.path":   "BUDGET_DB_PATH",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console")
	}

	a := c.Anomaly
	if a.FailedLoginThreshold <= 0 || a.ExpenseCountThreshold <= 0 || a.AfterHoursThreshold <= 0 {
		return fmt.Errorf("anomaly thresholds must be positive")
	}
	if a.FailedLoginWindow <= 0 || a.ExpenseWindow <= 0 || a.AfterHoursWindow <= 0 {
		return fmt.Errorf("anomaly windows must be positive")
	}
	if amount, err := decimal.NewFromString(a.ExpenseAmountThreshold); err != nil || !amount.IsPositive() {
		return fmt.Errorf("anomaly.expense_amount_threshold must be a positive amount")
	}
	if a.WorkdayStartHour < 0 || a.WorkdayEndHour > 23 || a.WorkdayStartHour > a.WorkdayEndHour {
		return fmt.Errorf("anomaly workday hours must satisfy 0 <= start <= end <= 23")
	}
	if _, err := time.LoadLocation(a.Timezone); err != nil {
		return fmt.Errorf("anomaly.timezone: %w", err)
	}

	if c.Lark.AppID != "" && c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required when lark.app_id is set")
	}
	if c.OpenAI.APIKey != "" && c.OpenAI.Model == "" {
		return fmt.Errorf("openai.model is required when openai.api_key is set")
	}

	return nil
}
