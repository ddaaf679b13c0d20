package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is realized spending. Only APPROVED and PAID expenses reduce the available budget.
type Expense struct {
	ID              int64           `json:"id"`
	ProjectID       *int64          `json:"project_id,omitempty"`
	PurchaseOrderID *int64          `json:"purchase_order_id,omitempty"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentStatus   string          `json:"payment_status"`
	CreatedBy       string          `json:"created_by"`
	ApprovedBy      string          `json:"approved_by,omitempty"`
	PaidBy          string          `json:"paid_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CountsAgainstBudget reports whether the expense is realized spend
func (e *Expense) CountsAgainstBudget() bool {
	return e.PaymentStatus == PaymentStatusApproved || e.PaymentStatus == PaymentStatusPaid
}
