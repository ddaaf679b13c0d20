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

const purchaseOrderColumns = `id, po_number, supplier_id, created_by, total_amount, status, notes,
	order_date, expected_delivery, delivery_date, created_at, updated_at`

// PurchaseOrderRepository implements port.PurchaseOrderRepository
type PurchaseOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPurchaseOrderRepository creates a new purchase order repository
func NewPurchaseOrderRepository(db *sql.DB, logger *zap.Logger) port.PurchaseOrderRepository {
	return &PurchaseOrderRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the purchase order header. Items are inserted with CreateItem.
func (r *PurchaseOrderRepository) Create(ctx context.Context, po *entity.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (
			po_number, supplier_id, created_by, total_amount, status, notes,
			order_date, expected_delivery, delivery_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	if po.CreatedAt.IsZero() {
		po.CreatedAt = now
	}
	po.UpdatedAt = now
	if po.OrderDate.IsZero() {
		po.OrderDate = now
	}
	if po.Status == "" {
		po.Status = entity.POStatusPending
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		po.PONumber,
		po.SupplierID,
		po.CreatedBy,
		po.TotalAmount.String(),
		po.Status,
		po.Notes,
		formatTime(po.OrderDate),
		nullableTime(po.ExpectedDelivery),
		nullableTime(po.DeliveryDate),
		formatTime(po.CreatedAt),
		formatTime(po.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create purchase order",
			zap.String("po_number", po.PONumber),
			zap.Error(err))
		return fmt.Errorf("failed to create purchase order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	po.ID = id
	return nil
}

// CreateItem inserts one line of a purchase order
func (r *PurchaseOrderRepository) CreateItem(ctx context.Context, item *entity.PurchaseOrderItem) error {
	query := `
		INSERT INTO purchase_order_items (purchase_order_id, material_id, quantity, unit_price, total_price)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		item.PurchaseOrderID,
		item.MaterialID,
		item.Quantity.String(),
		item.UnitPrice.String(),
		item.TotalPrice.String(),
	)
	if err != nil {
		r.logger.Error("Failed to create purchase order item",
			zap.Int64("purchase_order_id", item.PurchaseOrderID),
			zap.Int64("material_id", item.MaterialID),
			zap.Error(err))
		return fmt.Errorf("failed to create purchase order item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	item.ID = id
	return nil
}

// GetByID retrieves a purchase order header, returning nil when it does not exist
func (r *PurchaseOrderRepository) GetByID(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE id = ?`

	po, err := scanPurchaseOrder(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get purchase order", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get purchase order: %w", err)
	}
	return po, nil
}

// GetItems returns the lines of a purchase order in insertion order
func (r *PurchaseOrderRepository) GetItems(ctx context.Context, poID int64) ([]entity.PurchaseOrderItem, error) {
	query := `
		SELECT id, purchase_order_id, material_id, quantity, unit_price, total_price
		FROM purchase_order_items
		WHERE purchase_order_id = ?
		ORDER BY id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, poID)
	if err != nil {
		r.logger.Error("Failed to get purchase order items", zap.Int64("purchase_order_id", poID), zap.Error(err))
		return nil, fmt.Errorf("failed to get purchase order items: %w", err)
	}
	defer rows.Close()

	var items []entity.PurchaseOrderItem
	for rows.Next() {
		var item entity.PurchaseOrderItem
		var qty, price, total string
		if err := rows.Scan(&item.ID, &item.PurchaseOrderID, &item.MaterialID, &qty, &price, &total); err != nil {
			return nil, fmt.Errorf("failed to scan purchase order item: %w", err)
		}
		if item.Quantity, err = parseDecimal(qty); err != nil {
			return nil, err
		}
		if item.UnitPrice, err = parseDecimal(price); err != nil {
			return nil, err
		}
		if item.TotalPrice, err = parseDecimal(total); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// List returns purchase orders newest first, optionally filtered by status
func (r *PurchaseOrderRepository) List(ctx context.Context, status string, limit, offset int) ([]*entity.PurchaseOrder, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status != "" {
		query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE status = ? ORDER BY id DESC LIMIT ? OFFSET ?`
		rows, err = r.getExecutor(ctx).QueryContext(ctx, query, status, limit, offset)
	} else {
		query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders ORDER BY id DESC LIMIT ? OFFSET ?`
		rows, err = r.getExecutor(ctx).QueryContext(ctx, query, limit, offset)
	}
	if err != nil {
		r.logger.Error("Failed to list purchase orders", zap.String("status", status), zap.Error(err))
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	defer rows.Close()

	var orders []*entity.PurchaseOrder
	for rows.Next() {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase order: %w", err)
		}
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

// CompareAndSetStatus moves the order from one status to another and replaces its notes
func (r *PurchaseOrderRepository) CompareAndSetStatus(ctx context.Context, id int64, from, to, notes string) (bool, error) {
	query := `
		UPDATE purchase_orders
		SET status = ?, notes = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, to, notes, formatTime(time.Now()), id, from)
	if err != nil {
		r.logger.Error("Failed to update purchase order status",
			zap.Int64("id", id),
			zap.String("from", from),
			zap.String("to", to),
			zap.Error(err))
		return false, fmt.Errorf("failed to update purchase order status: %w", err)
	}
	return rowsAffectedOne(result)
}

// MarkDelivery records the delivery outcome of an APPROVED order
func (r *PurchaseOrderRepository) MarkDelivery(ctx context.Context, id int64, status string, deliveryDate time.Time, notes string) (bool, error) {
	query := `
		UPDATE purchase_orders
		SET status = ?, delivery_date = ?, notes = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		status,
		formatTime(deliveryDate),
		notes,
		formatTime(time.Now()),
		id,
		entity.POStatusApproved,
	)
	if err != nil {
		r.logger.Error("Failed to record purchase order delivery",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return false, fmt.Errorf("failed to record purchase order delivery: %w", err)
	}
	return rowsAffectedOne(result)
}

func scanPurchaseOrder(s scanner) (*entity.PurchaseOrder, error) {
	var (
		po                   entity.PurchaseOrder
		total, orderDate     string
		expected, delivered  sql.NullString
		createdAt, updatedAt string
	)
	err := s.Scan(&po.ID, &po.PONumber, &po.SupplierID, &po.CreatedBy, &total, &po.Status, &po.Notes,
		&orderDate, &expected, &delivered, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if po.TotalAmount, err = parseDecimal(total); err != nil {
		return nil, err
	}
	if po.OrderDate, err = parseTime(orderDate); err != nil {
		return nil, err
	}
	if po.ExpectedDelivery, err = parseNullTime(expected); err != nil {
		return nil, err
	}
	if po.DeliveryDate, err = parseNullTime(delivered); err != nil {
		return nil, err
	}
	if po.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if po.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *PurchaseOrderRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

var _ port.PurchaseOrderRepository = (*PurchaseOrderRepository)(nil)
