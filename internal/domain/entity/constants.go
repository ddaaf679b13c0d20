package entity

// Purchase order statuses
const (
	POStatusPending   = "PENDING"
	POStatusDraft     = "DRAFT"
	POStatusApproved  = "APPROVED"
	POStatusRejected  = "REJECTED"
	POStatusDelivered = "DELIVERED"
	POStatusCancelled = "CANCELLED"
)

// Expense payment statuses
const (
	PaymentStatusPending  = "PENDING"
	PaymentStatusApproved = "APPROVED"
	PaymentStatusRejected = "REJECTED"
	PaymentStatusPaid     = "PAID"
)

// Quotation statuses
const (
	QuotationStatusPending  = "PENDING"
	QuotationStatusAccepted = "ACCEPTED"
	QuotationStatusRejected = "REJECTED"
)

// Finance actions accepted by the purchase order workflow
const (
	FinanceActionApprove = "APPROVE"
	FinanceActionReject  = "REJECT"
	FinanceActionDraft   = "DRAFT"
)

// Roles that receive workflow notifications
const (
	RoleProjectManager = "PROJECT_MANAGER"
	RoleFinanceOfficer = "FINANCE_OFFICER"
	RoleProcurement    = "PROCUREMENT"
)

// Activity log actions
const (
	ActionLoginSuccess               = "LOGIN_SUCCESS"
	ActionLoginFailed                = "LOGIN_FAILED"
	ActionCreatePurchaseOrder        = "CREATE_PURCHASE_ORDER"
	ActionSetPurchaseOrderFinance    = "SET_PURCHASE_ORDER_FINANCE_STATUS"
	ActionRecordPurchaseOrderDeliver = "RECORD_PURCHASE_ORDER_DELIVERY"
	ActionSubmitExpense              = "SUBMIT_EXPENSE"
	ActionSetExpensePaymentStatus    = "SET_EXPENSE_PAYMENT_STATUS"
	ActionSubmitQuotation            = "SUBMIT_QUOTATION"
	ActionResolveQuotation           = "RESOLVE_QUOTATION"
)

// Entity type names used in audit entries, notifications and errors
const (
	EntityProject       = "project"
	EntityExpense       = "expense"
	EntityPurchaseOrder = "purchase_order"
	EntityQuotation     = "quotation"
)

// Notification delivery statuses
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)
