package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/budget-gate/internal/application/port"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/garyjia/budget-gate/internal/domain/event"
)

// NotificationService persists workflow notifications to the outbox and
// delivers them through a MessageSender
type NotificationService interface {
	port.NotificationSink

	// HandleEvent routes a workflow event to its recipients
	HandleEvent(ctx context.Context, evt *event.Event) error

	// DeliverPending sends up to limit outbox rows and returns how many were sent
	DeliverPending(ctx context.Context, limit int) (int, error)
}

type notificationServiceImpl struct {
	repo   port.NotificationRepository
	sender port.MessageSender
	logger Logger
}

// NewNotificationService creates a new NotificationService. A nil sender leaves
// notifications queued.
func NewNotificationService(repo port.NotificationRepository, sender port.MessageSender, logger Logger) NotificationService {
	return &notificationServiceImpl{
		repo:   repo,
		sender: sender,
		logger: logger,
	}
}

// NotifyRole queues a message for every member of role
func (s *notificationServiceImpl) NotifyRole(ctx context.Context, role, message, entityType string, entityID int64) error {
	return s.queue(ctx, &entity.Notification{
		TargetRole: role,
		Message:    message,
		EntityType: entityType,
		EntityID:   entityID,
	})
}

// NotifyUser queues a message for one user
func (s *notificationServiceImpl) NotifyUser(ctx context.Context, userID, message, entityType string, entityID int64) error {
	return s.queue(ctx, &entity.Notification{
		TargetUser: userID,
		Message:    message,
		EntityType: entityType,
		EntityID:   entityID,
	})
}

func (s *notificationServiceImpl) queue(ctx context.Context, n *entity.Notification) error {
	if strings.TrimSpace(n.Message) == "" {
		return fmt.Errorf("notification for %s %d has no message", n.EntityType, n.EntityID)
	}
	n.Status = entity.NotificationStatusPending
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("queue notification: %w", err)
	}
	return nil
}

// HandleEvent maps purchase order events to role channels and expense or
// quotation decisions to the submitting user. Of the delivery outcomes only
// DELIVERED reaches the project managers.
func (s *notificationServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	message := evt.GetPayloadString(event.KeyMessage)

	var roles []string
	switch evt.Type {
	case event.TypePurchaseOrderCreated:
		roles = []string{entity.RoleProjectManager, entity.RoleFinanceOfficer}
	case event.TypePurchaseOrderFinanceStatus:
		roles = []string{entity.RoleProcurement}
	case event.TypePurchaseOrderDelivered:
		// Cancellations share the event type and are not announced
		if evt.GetPayloadString(event.KeyStatus) != entity.POStatusDelivered {
			return nil
		}
		roles = []string{entity.RoleProjectManager}
	case event.TypeExpenseStatusChanged, event.TypeQuotationResolved:
		owner := evt.GetPayloadString(event.KeyOwner)
		if owner == "" {
			return fmt.Errorf("event %s for %s %d has no owner", evt.Type, evt.EntityType, evt.EntityID)
		}
		return s.NotifyUser(ctx, owner, message, evt.EntityType, evt.EntityID)
	default:
		return nil
	}

	for _, role := range roles {
		if err := s.NotifyRole(ctx, role, message, evt.EntityType, evt.EntityID); err != nil {
			return err
		}
	}
	return nil
}

// DeliverPending drains the outbox in creation order. Send failures mark the
// row FAILED and do not stop the batch.
func (s *notificationServiceImpl) DeliverPending(ctx context.Context, limit int) (int, error) {
	if s.sender == nil {
		return 0, nil
	}

	pending, err := s.repo.ListPending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending notifications: %w", err)
	}

	sent := 0
	for _, n := range pending {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}

		to := port.Recipient{Role: n.TargetRole, UserID: n.TargetUser}
		if sendErr := s.sender.Send(ctx, to, n.Message); sendErr != nil {
			s.logger.Error("Failed to deliver notification", "error", sendErr, "notification_id", n.ID)
			if err := s.repo.MarkFailed(ctx, n.ID, sendErr.Error()); err != nil {
				return sent, fmt.Errorf("mark notification %d failed: %w", n.ID, err)
			}
			continue
		}

		if err := s.repo.MarkSent(ctx, n.ID); err != nil {
			return sent, fmt.Errorf("mark notification %d sent: %w", n.ID, err)
		}
		sent++
	}

	if sent > 0 {
		s.logger.Info("Notifications delivered", "sent", sent, "pending", len(pending))
	}
	return sent, nil
}
