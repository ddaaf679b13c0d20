package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/budget-gate/internal/application/port"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/garyjia/budget-gate/internal/infrastructure/persistence/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BudgetRepository implements port.BudgetRepository
type BudgetRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBudgetRepository creates a new budget aggregate reader
func NewBudgetRepository(db *sql.DB, logger *zap.Logger) port.BudgetRepository {
	return &BudgetRepository{
		db:     db,
		logger: logger,
	}
}

// Snapshot reads the inputs of the available-budget formula. The three reads
// share one transaction: the caller's when ctx carries one, otherwise a
// short-lived one opened here.
func (r *BudgetRepository) Snapshot(ctx context.Context, excludePOID *int64) (*port.BudgetSnapshot, error) {
	if sqlite.TxFromContext(ctx) != nil {
		return r.snapshot(ctx, r.getExecutor(ctx), excludePOID)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin snapshot transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	snap, err := r.snapshot(ctx, tx, excludePOID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to close snapshot transaction: %w", err)
	}
	return snap, nil
}

func (r *BudgetRepository) snapshot(ctx context.Context, exec sqlite.Executor, excludePOID *int64) (*port.BudgetSnapshot, error) {
	snap := &port.BudgetSnapshot{}

	budgets, err := r.queryAmounts(ctx, exec, `SELECT budget FROM projects`)
	if err != nil {
		return nil, fmt.Errorf("failed to read project budgets: %w", err)
	}
	snap.ProjectBudgets = budgets

	realized, err := r.queryAmounts(ctx, exec,
		`SELECT amount FROM expenses WHERE payment_status IN (?, ?)`,
		entity.PaymentStatusApproved, entity.PaymentStatusPaid)
	if err != nil {
		return nil, fmt.Errorf("failed to read realized expenses: %w", err)
	}
	snap.RealizedExpenses = realized

	var rows *sql.Rows
	if excludePOID != nil {
		rows, err = exec.QueryContext(ctx,
			`SELECT id, status, total_amount FROM purchase_orders WHERE id <> ? ORDER BY id`, *excludePOID)
	} else {
		rows, err = exec.QueryContext(ctx,
			`SELECT id, status, total_amount FROM purchase_orders ORDER BY id`)
	}
	if err != nil {
		r.logger.Error("Failed to read purchase order commitments", zap.Error(err))
		return nil, fmt.Errorf("failed to read purchase order commitments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c port.POCommitment
		var total string
		if err := rows.Scan(&c.ID, &c.Status, &total); err != nil {
			return nil, fmt.Errorf("failed to scan purchase order commitment: %w", err)
		}
		if c.Total, err = parseDecimal(total); err != nil {
			return nil, err
		}
		snap.Commitments = append(snap.Commitments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read purchase order commitments: %w", err)
	}

	return snap, nil
}

func (r *BudgetRepository) queryAmounts(ctx context.Context, exec sqlite.Executor, query string, args ...interface{}) ([]decimal.Decimal, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to read amounts", zap.String("query", query), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []decimal.Decimal
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		d, err := parseDecimal(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *BudgetRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

var _ port.BudgetRepository = (*BudgetRepository)(nil)
