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

const activityLogColumns = `id, user_id, action, entity_type, entity_id, details, ip_address, created_at`

// ActivityLogRepository implements port.ActivityLogRepository
type ActivityLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewActivityLogRepository creates a new activity log repository
func NewActivityLogRepository(db *sql.DB, logger *zap.Logger) port.ActivityLogRepository {
	return &ActivityLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an activity row
func (r *ActivityLogRepository) Create(ctx context.Context, log *entity.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (user_id, action, entity_type, entity_id, details, ip_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	var entityID interface{}
	if log.EntityID != 0 {
		entityID = log.EntityID
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		log.UserID,
		log.Action,
		nullableString(log.EntityType),
		entityID,
		nullableString(log.Details),
		nullableString(log.IPAddress),
		formatTime(log.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create activity log",
			zap.String("user_id", log.UserID),
			zap.String("action", log.Action),
			zap.Error(err))
		return fmt.Errorf("failed to create activity log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	log.ID = id
	return nil
}

// ListByActionBetween returns rows of one action with since < created_at <= until, oldest first
func (r *ActivityLogRepository) ListByActionBetween(ctx context.Context, action string, since, until time.Time) ([]*entity.ActivityLog, error) {
	query := `SELECT ` + activityLogColumns + `
		FROM activity_logs
		WHERE action = ? AND created_at > ? AND created_at <= ?
		ORDER BY created_at, id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, action, formatTime(since), formatTime(until))
	if err != nil {
		r.logger.Error("Failed to list activity logs",
			zap.String("action", action),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list activity logs: %w", err)
	}
	return collectActivityLogs(rows)
}

// ListByEntity returns the audit trail of one entity, oldest first
func (r *ActivityLogRepository) ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.ActivityLog, error) {
	query := `SELECT ` + activityLogColumns + `
		FROM activity_logs
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at, id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		r.logger.Error("Failed to list activity logs by entity",
			zap.String("entity_type", entityType),
			zap.Int64("entity_id", entityID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list activity logs: %w", err)
	}
	return collectActivityLogs(rows)
}

func collectActivityLogs(rows *sql.Rows) ([]*entity.ActivityLog, error) {
	defer rows.Close()

	var logs []*entity.ActivityLog
	for rows.Next() {
		var (
			l                       entity.ActivityLog
			entityType, details, ip sql.NullString
			entityID                sql.NullInt64
			createdAt               string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &entityType, &entityID, &details, &ip, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		l.EntityType = entityType.String
		l.EntityID = entityID.Int64
		l.Details = details.String
		l.IPAddress = ip.String

		t, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		l.CreatedAt = t
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

func (r *ActivityLogRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

var _ port.ActivityLogRepository = (*ActivityLogRepository)(nil)
