package port

import (
	"context"
	"io"
	"time"

	"github.com/garyjia/budget-gate/internal/domain/entity"
)

// Recipient addresses a message to a role channel or to one user
type Recipient struct {
	Role   string
	UserID string
}

// MessageSender delivers a rendered notification to its recipient
type MessageSender interface {
	Send(ctx context.Context, to Recipient, text string) error
}

// NotificationSink accepts workflow notifications for best-effort delivery
type NotificationSink interface {
	NotifyRole(ctx context.Context, role, message, entityType string, entityID int64) error
	NotifyUser(ctx context.Context, userID, message, entityType string, entityID int64) error
}

// AuditSink records workflow audit entries
type AuditSink interface {
	Record(ctx context.Context, actor, action, entityType string, entityID int64, details map[string]interface{}) error
}

// AlertNarrator turns a list of alerts into a short human-readable briefing
type AlertNarrator interface {
	Narrate(ctx context.Context, alerts []entity.Alert) (string, error)
}

// ReportWriter renders the auditor report for download
type ReportWriter interface {
	WriteAuditReport(w io.Writer, asOf time.Time, summary *entity.BudgetSummary, alerts []entity.Alert) error
}
