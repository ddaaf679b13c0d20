package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrder is a procurement request whose total becomes a budget commitment once approved
type PurchaseOrder struct {
	ID               int64               `json:"id"`
	PONumber         string              `json:"po_number"`
	SupplierID       int64               `json:"supplier_id"`
	CreatedBy        string              `json:"created_by"`
	TotalAmount      decimal.Decimal     `json:"total_amount"`
	Status           string              `json:"status"`
	Notes            string              `json:"notes"`
	OrderDate        time.Time           `json:"order_date"`
	ExpectedDelivery *time.Time          `json:"expected_delivery,omitempty"`
	DeliveryDate     *time.Time          `json:"delivery_date,omitempty"`
	Items            []PurchaseOrderItem `json:"items,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// PurchaseOrderItem is one immutable line of a purchase order
type PurchaseOrderItem struct {
	ID              int64           `json:"id"`
	PurchaseOrderID int64           `json:"purchase_order_id"`
	MaterialID      int64           `json:"material_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
}

// Commitment returns the share of the total held against the budget in the current status
func (po *PurchaseOrder) Commitment() decimal.Decimal {
	return CommitmentFor(po.Status, po.TotalAmount)
}

// IsFinalized reports whether the order no longer accepts finance transitions
func (po *PurchaseOrder) IsFinalized() bool {
	return po.Status == POStatusDelivered || po.Status == POStatusCancelled
}

var half = decimal.NewFromInt(2)

// CommitmentFor is the commitment weighting: APPROVED and DELIVERED hold the full total,
// DRAFT holds half, every other status holds nothing.
func CommitmentFor(status string, total decimal.Decimal) decimal.Decimal {
	switch status {
	case POStatusApproved, POStatusDelivered:
		return total
	case POStatusDraft:
		return total.Div(half)
	default:
		return decimal.Zero
	}
}
