package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/budget-gate/internal/application/port"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/garyjia/budget-gate/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// QuotationRepository implements port.QuotationRepository
type QuotationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewQuotationRepository creates a new quotation repository
func NewQuotationRepository(db *sql.DB, logger *zap.Logger) port.QuotationRepository {
	return &QuotationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a quotation
func (r *QuotationRepository) Create(ctx context.Context, q *entity.Quotation) error {
	query := `
		INSERT INTO quotations (
			supplier_id, project_id, total_amount, status, created_by,
			approved_by, rejection_reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = now
	if q.Status == "" {
		q.Status = entity.QuotationStatusPending
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		q.SupplierID,
		nullableInt64(q.ProjectID),
		q.TotalAmount.String(),
		q.Status,
		q.CreatedBy,
		nullableString(q.ApprovedBy),
		nullableString(q.RejectionReason),
		formatTime(q.CreatedAt),
		formatTime(q.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create quotation", zap.Int64("supplier_id", q.SupplierID), zap.Error(err))
		return fmt.Errorf("failed to create quotation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	q.ID = id
	return nil
}

// GetByID retrieves a quotation, returning nil when it does not exist
func (r *QuotationRepository) GetByID(ctx context.Context, id int64) (*entity.Quotation, error) {
	query := `
		SELECT id, supplier_id, project_id, total_amount, status, created_by,
			approved_by, rejection_reason, created_at, updated_at
		FROM quotations
		WHERE id = ?
	`

	var (
		q                    entity.Quotation
		projectID            sql.NullInt64
		total                string
		approvedBy, reason   sql.NullString
		createdAt, updatedAt string
	)
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&q.ID, &q.SupplierID, &projectID, &total, &q.Status, &q.CreatedBy,
		&approvedBy, &reason, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get quotation", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get quotation: %w", err)
	}

	q.ProjectID = int64Ptr(projectID)
	q.ApprovedBy = approvedBy.String
	q.RejectionReason = reason.String
	if q.TotalAmount, err = parseDecimal(total); err != nil {
		return nil, err
	}
	if q.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if q.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &q, nil
}

// Resolve sets the final status of a PENDING quotation
func (r *QuotationRepository) Resolve(ctx context.Context, id int64, status, approvedBy, rejectionReason string) (bool, error) {
	query := `
		UPDATE quotations
		SET status = ?, approved_by = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		status,
		nullableString(approvedBy),
		nullableString(rejectionReason),
		formatTime(time.Now()),
		id,
		entity.QuotationStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to resolve quotation",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return false, fmt.Errorf("failed to resolve quotation: %w", err)
	}
	return rowsAffectedOne(result)
}

func (r *QuotationRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

var _ port.QuotationRepository = (*QuotationRepository)(nil)
