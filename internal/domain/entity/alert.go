package entity

import "time"

// Severity of an auditor alert
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Rank orders severities; higher is more severe
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Category of an auditor alert
type Category string

const (
	CategorySecurity  Category = "SECURITY"
	CategoryFinancial Category = "FINANCIAL"
	CategoryAccess    Category = "ACCESS"
)

// Alert is a computed anomaly signal. Alerts are never persisted.
type Alert struct {
	Severity    Severity  `json:"severity"`
	Category    Category  `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	UserID      string    `json:"user_id,omitempty"`
	ProjectID   *int64    `json:"project_id,omitempty"`
}
