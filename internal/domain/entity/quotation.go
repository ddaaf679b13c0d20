package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quotation is a supplier offer resolved exactly once
type Quotation struct {
	ID              int64           `json:"id"`
	SupplierID      int64           `json:"supplier_id"`
	ProjectID       *int64          `json:"project_id,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          string          `json:"status"`
	CreatedBy       string          `json:"created_by"`
	ApprovedBy      string          `json:"approved_by,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
