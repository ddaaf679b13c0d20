package port

import (
	"context"
	"time"

	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ProjectRepository defines persistence operations for Project
type ProjectRepository interface {
	Create(ctx context.Context, project *entity.Project) error
	GetByID(ctx context.Context, id int64) (*entity.Project, error)
	List(ctx context.Context) ([]*entity.Project, error)
}

// ExpenseRepository defines persistence operations for Expense
type ExpenseRepository interface {
	Create(ctx context.Context, expense *entity.Expense) error
	GetByID(ctx context.Context, id int64) (*entity.Expense, error)
	GetByPurchaseOrderID(ctx context.Context, poID int64) (*entity.Expense, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status, approvedBy, paidBy string) error
	List(ctx context.Context, projectID *int64, limit, offset int) ([]*entity.Expense, error)
	// ListCreatedBetween returns expenses with since < created_at <= until ordered by creation
	ListCreatedBetween(ctx context.Context, since, until time.Time) ([]*entity.Expense, error)
}

// PurchaseOrderRepository defines persistence operations for PurchaseOrder and its items
type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *entity.PurchaseOrder) error
	CreateItem(ctx context.Context, item *entity.PurchaseOrderItem) error
	GetByID(ctx context.Context, id int64) (*entity.PurchaseOrder, error)
	GetItems(ctx context.Context, poID int64) ([]entity.PurchaseOrderItem, error)
	List(ctx context.Context, status string, limit, offset int) ([]*entity.PurchaseOrder, error)
	// CompareAndSetStatus moves the order from one status to another and replaces notes.
	// It reports false when the order is no longer in the expected status.
	CompareAndSetStatus(ctx context.Context, id int64, from, to, notes string) (bool, error)
	// MarkDelivery records the delivery outcome of an APPROVED order.
	// It reports false when the order is no longer APPROVED.
	MarkDelivery(ctx context.Context, id int64, status string, deliveryDate time.Time, notes string) (bool, error)
}

// QuotationRepository defines persistence operations for Quotation
type QuotationRepository interface {
	Create(ctx context.Context, q *entity.Quotation) error
	GetByID(ctx context.Context, id int64) (*entity.Quotation, error)
	// Resolve sets the final status of a PENDING quotation and reports false if it was already resolved
	Resolve(ctx context.Context, id int64, status, approvedBy, rejectionReason string) (bool, error)
}

// ActivityLogRepository defines persistence operations for ActivityLog
type ActivityLogRepository interface {
	Create(ctx context.Context, log *entity.ActivityLog) error
	// ListByActionBetween returns rows with since < created_at <= until ordered by creation
	ListByActionBetween(ctx context.Context, action string, since, until time.Time) ([]*entity.ActivityLog, error)
	ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.ActivityLog, error)
}

// NotificationRepository defines persistence operations for the notification outbox
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	ListPending(ctx context.Context, limit int) ([]*entity.Notification, error)
	ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.Notification, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

// POCommitment is the status and total of one purchase order, as read for the budget aggregate
type POCommitment struct {
	ID     int64
	Status string
	Total  decimal.Decimal
}

// BudgetSnapshot holds the raw figures the available-budget formula is applied to
type BudgetSnapshot struct {
	ProjectBudgets   []decimal.Decimal
	RealizedExpenses []decimal.Decimal
	Commitments      []POCommitment
}

// BudgetRepository reads the aggregate inputs of the available-budget computation
type BudgetRepository interface {
	// Snapshot reads all project budgets, APPROVED/PAID expense amounts and the
	// status/total of every purchase order except excludePOID.
	Snapshot(ctx context.Context, excludePOID *int64) (*BudgetSnapshot, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
