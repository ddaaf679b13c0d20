package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/budget-gate/internal/application/service"
	"github.com/garyjia/budget-gate/internal/container"
	"github.com/shopspring/decimal"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() (*container.Config, error) {
	anomaly, err := c.Anomaly.toService()
	if err != nil {
		return nil, err
	}

	// viper lower-cases map keys; roles are upper-case constants
	roleChats := make(map[string]string, len(c.Lark.RoleChats))
	for role, chat := range c.Lark.RoleChats {
		roleChats[strings.ToUpper(role)] = chat
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
		},
		Lark: container.LarkConfig{
			AppID:      c.Lark.AppID,
			AppSecret:  c.Lark.AppSecret,
			RoleChats:  roleChats,
			UserIDType: c.Lark.UserIDType,
		},
		OpenAI: container.OpenAIConfig{
			APIKey:      c.OpenAI.APIKey,
			BaseURL:     c.OpenAI.BaseURL,
			Model:       c.OpenAI.Model,
			Temperature: c.OpenAI.Temperature,
			MaxTokens:   c.OpenAI.MaxTokens,
			Timeout:     c.OpenAI.Timeout,
			PromptsPath: c.OpenAI.PromptsPath,
		},
		Anomaly: anomaly,
		Worker: container.WorkerConfig{
			NotificationPollInterval: c.Worker.NotificationPollInterval,
			NotificationBatchSize:    c.Worker.NotificationBatchSize,
			FailureBuffer:            c.Worker.FailureBuffer,
		},
	}, nil
}

func (a AnomalyConfig) toService() (service.AnomalyConfig, error) {
	amount, err := decimal.NewFromString(a.ExpenseAmountThreshold)
	if err != nil {
		return service.AnomalyConfig{}, fmt.Errorf("anomaly.expense_amount_threshold: %w", err)
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return service.AnomalyConfig{}, fmt.Errorf("anomaly.timezone: %w", err)
	}

	return service.AnomalyConfig{
		FailedLoginWindow:      a.FailedLoginWindow,
		FailedLoginThreshold:   a.FailedLoginThreshold,
		ExpenseWindow:          a.ExpenseWindow,
		ExpenseAmountThreshold: amount,
		ExpenseCountThreshold:  a.ExpenseCountThreshold,
		AfterHoursWindow:       a.AfterHoursWindow,
		AfterHoursThreshold:    a.AfterHoursThreshold,
		WorkdayStartHour:       a.WorkdayStartHour,
		WorkdayEndHour:         a.WorkdayEndHour,
		Location:               loc,
	}, nil
}
