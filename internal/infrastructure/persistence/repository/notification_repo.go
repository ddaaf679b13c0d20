package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/budget-gate/internal/application/port"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/garyjia/budget-gate/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const notificationColumns = `id, target_role, target_user, message, entity_type, entity_id,
	status, error_message, sent_at, created_at, updated_at`

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a notification into the outbox
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (
			target_role, target_user, message, entity_type, entity_id,
			status, error_message, sent_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	if n.Status == "" {
		n.Status = entity.NotificationStatusPending
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		nullableString(n.TargetRole),
		nullableString(n.TargetUser),
		n.Message,
		n.EntityType,
		n.EntityID,
		n.Status,
		nullableString(n.ErrorMessage),
		nullableTime(n.SentAt),
		formatTime(n.CreatedAt),
		formatTime(n.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("entity_type", n.EntityType),
			zap.Int64("entity_id", n.EntityID),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	n.ID = id
	return nil
}

// ListPending returns up to limit undelivered notifications, oldest first
func (r *NotificationRepository) ListPending(ctx context.Context, limit int) ([]*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE status = ?
		ORDER BY id
		LIMIT ?`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, entity.NotificationStatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to list pending notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	return collectNotifications(rows)
}

// ListByEntity returns the notifications raised for one entity
func (r *NotificationRepository) ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		r.logger.Error("Failed to list notifications by entity",
			zap.String("entity_type", entityType),
			zap.Int64("entity_id", entityID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return collectNotifications(rows)
}

// MarkSent marks a notification delivered
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64) error {
	query := `
		UPDATE notifications
		SET status = ?, sent_at = ?, error_message = NULL, updated_at = ?
		WHERE id = ?
	`

	now := formatTime(time.Now())
	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, entity.NotificationStatusSent, now, now, id); err != nil {
		r.logger.Error("Failed to mark notification sent", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed marks a notification undeliverable
func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	query := `
		UPDATE notifications
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`

	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, entity.NotificationStatusFailed, errMsg, formatTime(time.Now()), id); err != nil {
		r.logger.Error("Failed to mark notification failed", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

func collectNotifications(rows *sql.Rows) ([]*entity.Notification, error) {
	defer rows.Close()

	var out []*entity.Notification
	for rows.Next() {
		var (
			n                    entity.Notification
			role, user, errMsg   sql.NullString
			sentAt               sql.NullString
			createdAt, updatedAt string
		)
		err := rows.Scan(&n.ID, &role, &user, &n.Message, &n.EntityType, &n.EntityID,
			&n.Status, &errMsg, &sentAt, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.TargetRole = role.String
		n.TargetUser = user.String
		n.ErrorMessage = errMsg.String

		if n.SentAt, err = parseNullTime(sentAt); err != nil {
			return nil, err
		}
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if n.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (r *NotificationRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

var _ port.NotificationRepository = (*NotificationRepository)(nil)
