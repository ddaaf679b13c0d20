package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garyjia/budget-gate/internal/application/dispatcher"
	"github.com/garyjia/budget-gate/internal/application/port"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/garyjia/budget-gate/internal/domain/event"
)

// AuditService writes workflow actions to the activity log
type AuditService interface {
	port.AuditSink

	// HandleEvent records one audit entry per workflow event
	HandleEvent(ctx context.Context, evt *event.Event) error

	// Trail returns the audit entries of one entity, oldest first
	Trail(ctx context.Context, entityType string, entityID int64) ([]*entity.ActivityLog, error)
}

type auditServiceImpl struct {
	repo   port.ActivityLogRepository
	logger Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(repo port.ActivityLogRepository, logger Logger) AuditService {
	return &auditServiceImpl{
		repo:   repo,
		logger: logger,
	}
}

// Record appends an activity log row with details encoded as JSON
func (s *auditServiceImpl) Record(ctx context.Context, actor, action, entityType string, entityID int64, details map[string]interface{}) error {
	var encoded string
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		encoded = string(raw)
	}

	entry := &entity.ActivityLog{
		UserID:     actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    encoded,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// HandleEvent records the event under the action named in its payload
func (s *auditServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	action := evt.GetPayloadString(event.KeyAction)
	if action == "" {
		action = string(evt.Type)
	}

	details := make(map[string]interface{}, len(evt.Payload)+1)
	for k, v := range evt.Payload {
		if k == event.KeyAction {
			continue
		}
		details[k] = v
	}
	details["event_id"] = evt.ID

	return s.Record(ctx, evt.Actor, action, evt.EntityType, evt.EntityID, details)
}

// Trail returns the audit entries of one entity
func (s *auditServiceImpl) Trail(ctx context.Context, entityType string, entityID int64) ([]*entity.ActivityLog, error) {
	logs, err := s.repo.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit trail: %w", err)
	}
	return logs, nil
}

// RegisterSideEffects subscribes the audit and notification handlers to every workflow event
func RegisterSideEffects(d dispatcher.Dispatcher, audit AuditService, notify NotificationService) {
	for _, t := range event.AllTypes() {
		d.SubscribeNamed(t, "audit", audit.HandleEvent)
		d.SubscribeNamed(t, "notify", notify.HandleEvent)
	}
}
