package event

// Type identifies the type of domain event
type Type string

const (
	TypePurchaseOrderCreated       Type = "purchase_order.created"
	TypePurchaseOrderFinanceStatus Type = "purchase_order.finance_status_changed"
	TypePurchaseOrderDelivered     Type = "purchase_order.delivered"
	TypeExpenseSubmitted           Type = "expense.submitted"
	TypeExpenseStatusChanged       Type = "expense.status_changed"
	TypeQuotationSubmitted         Type = "quotation.submitted"
	TypeQuotationResolved          Type = "quotation.resolved"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypePurchaseOrderCreated,
		TypePurchaseOrderFinanceStatus,
		TypePurchaseOrderDelivered,
		TypeExpenseSubmitted,
		TypeExpenseStatusChanged,
		TypeQuotationSubmitted,
		TypeQuotationResolved:
		return true
	default:
		return false
	}
}

// AllTypes returns every workflow event type
func AllTypes() []Type {
	return []Type{
		TypePurchaseOrderCreated,
		TypePurchaseOrderFinanceStatus,
		TypePurchaseOrderDelivered,
		TypeExpenseSubmitted,
		TypeExpenseStatusChanged,
		TypeQuotationSubmitted,
		TypeQuotationResolved,
	}
}
