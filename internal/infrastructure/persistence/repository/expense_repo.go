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

const expenseColumns = `id, project_id, purchase_order_id, description, amount, payment_status,
	created_by, approved_by, paid_by, created_at, updated_at`

// ExpenseRepository implements port.ExpenseRepository
type ExpenseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sql.DB, logger *zap.Logger) port.ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an expense and sets its ID
func (r *ExpenseRepository) Create(ctx context.Context, expense *entity.Expense) error {
	query := `
		INSERT INTO expenses (
			project_id, purchase_order_id, description, amount, payment_status,
			created_by, approved_by, paid_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = now
	}
	expense.UpdatedAt = now
	if expense.PaymentStatus == "" {
		expense.PaymentStatus = entity.PaymentStatusPending
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		nullableInt64(expense.ProjectID),
		nullableInt64(expense.PurchaseOrderID),
		expense.Description,
		expense.Amount.String(),
		expense.PaymentStatus,
		expense.CreatedBy,
		nullableString(expense.ApprovedBy),
		nullableString(expense.PaidBy),
		formatTime(expense.CreatedAt),
		formatTime(expense.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create expense",
			zap.String("created_by", expense.CreatedBy),
			zap.Error(err))
		return fmt.Errorf("failed to create expense: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	expense.ID = id
	return nil
}

// GetByID retrieves an expense by ID, returning nil when it does not exist
func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// GetByPurchaseOrderID retrieves the synthetic expense created on delivery of a purchase order
func (r *ExpenseRepository) GetByPurchaseOrderID(ctx context.Context, poID int64) (*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE purchase_order_id = ?`
	return r.getOne(ctx, query, poID)
}

func (r *ExpenseRepository) getOne(ctx context.Context, query string, arg int64) (*entity.Expense, error) {
	expense, err := scanExpense(r.getExecutor(ctx).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense", zap.Int64("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

// UpdatePaymentStatus sets the payment status and the approving/paying actors
func (r *ExpenseRepository) UpdatePaymentStatus(ctx context.Context, id int64, status, approvedBy, paidBy string) error {
	query := `
		UPDATE expenses
		SET payment_status = ?,
			approved_by = COALESCE(?, approved_by),
			paid_by = COALESCE(?, paid_by),
			updated_at = ?
		WHERE id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		status,
		nullableString(approvedBy),
		nullableString(paidBy),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		r.logger.Error("Failed to update expense payment status",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update expense payment status: %w", err)
	}
	return nil
}

// List returns expenses newest first, optionally restricted to one project
func (r *ExpenseRepository) List(ctx context.Context, projectID *int64, limit, offset int) ([]*entity.Expense, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if projectID != nil {
		query := `SELECT ` + expenseColumns + ` FROM expenses WHERE project_id = ? ORDER BY id DESC LIMIT ? OFFSET ?`
		rows, err = r.getExecutor(ctx).QueryContext(ctx, query, *projectID, limit, offset)
	} else {
		query := `SELECT ` + expenseColumns + ` FROM expenses ORDER BY id DESC LIMIT ? OFFSET ?`
		rows, err = r.getExecutor(ctx).QueryContext(ctx, query, limit, offset)
	}
	if err != nil {
		r.logger.Error("Failed to list expenses", zap.Error(err))
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return collectExpenses(rows)
}

// ListCreatedBetween returns expenses with since < created_at <= until, oldest first
func (r *ExpenseRepository) ListCreatedBetween(ctx context.Context, since, until time.Time) ([]*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + `
		FROM expenses
		WHERE created_at > ? AND created_at <= ?
		ORDER BY created_at, id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, formatTime(since), formatTime(until))
	if err != nil {
		r.logger.Error("Failed to list expenses by creation window", zap.Error(err))
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return collectExpenses(rows)
}

func collectExpenses(rows *sql.Rows) ([]*entity.Expense, error) {
	defer rows.Close()

	var expenses []*entity.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func scanExpense(s scanner) (*entity.Expense, error) {
	var (
		e                    entity.Expense
		projectID, poID      sql.NullInt64
		amount               string
		approvedBy, paidBy   sql.NullString
		createdAt, updatedAt string
	)
	err := s.Scan(&e.ID, &projectID, &poID, &e.Description, &amount, &e.PaymentStatus,
		&e.CreatedBy, &approvedBy, &paidBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	e.ProjectID = int64Ptr(projectID)
	e.PurchaseOrderID = int64Ptr(poID)
	e.ApprovedBy = approvedBy.String
	e.PaidBy = paidBy.String

	if e.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *ExpenseRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

var _ port.ExpenseRepository = (*ExpenseRepository)(nil)
