package workflow

import (
	"github.com/garyjia/budget-gate/internal/domain/entity"
	domainwf "github.com/garyjia/budget-gate/internal/domain/workflow"
)

// FinanceTrigger maps a finance action to its purchase order trigger
func FinanceTrigger(action string) (domainwf.Trigger, bool) {
	switch action {
	case entity.FinanceActionApprove:
		return domainwf.TriggerApprove, true
	case entity.FinanceActionReject:
		return domainwf.TriggerReject, true
	case entity.FinanceActionDraft:
		return domainwf.TriggerDraft, true
	default:
		return "", false
	}
}

// DeliveryTrigger maps a delivery outcome status to its purchase order trigger
func DeliveryTrigger(status string) (domainwf.Trigger, bool) {
	switch status {
	case entity.POStatusDelivered:
		return domainwf.TriggerDeliver, true
	case entity.POStatusCancelled:
		return domainwf.TriggerCancel, true
	default:
		return "", false
	}
}

// PaymentTrigger maps a target payment status to its expense trigger
func PaymentTrigger(status string) (domainwf.Trigger, bool) {
	switch status {
	case entity.PaymentStatusApproved:
		return domainwf.TriggerApprove, true
	case entity.PaymentStatusRejected:
		return domainwf.TriggerReject, true
	case entity.PaymentStatusPaid:
		return domainwf.TriggerPay, true
	default:
		return "", false
	}
}

// BuildPurchaseOrderMachine creates the purchase order machine positioned at status.
// Every APPROVE transition is guarded by budgetGuard; a nil guard always passes.
func BuildPurchaseOrderMachine(status string, budgetGuard domainwf.GuardFunc) (domainwf.StateMachine, error) {
	builder := domainwf.NewBuilder(
		domainwf.StatePending,
		domainwf.StateDraft,
		domainwf.StateApproved,
		domainwf.StateRejected,
		domainwf.StateDelivered,
		domainwf.StateCancelled,
	)

	// Finance decisions may be revised until the order is delivered or cancelled
	for _, s := range []domainwf.State{domainwf.StatePending, domainwf.StateDraft, domainwf.StateApproved, domainwf.StateRejected} {
		builder.Configure(s).
			PermitIf(domainwf.TriggerApprove, domainwf.StateApproved, budgetGuard).
			Permit(domainwf.TriggerReject, domainwf.StateRejected).
			Permit(domainwf.TriggerDraft, domainwf.StateDraft)
	}

	builder.Configure(domainwf.StateApproved).
		Permit(domainwf.TriggerDeliver, domainwf.StateDelivered).
		Permit(domainwf.TriggerCancel, domainwf.StateCancelled)

	builder.Final(domainwf.StateDelivered, domainwf.StateCancelled)

	return builder.BuildFrom(domainwf.State(status))
}

// BuildExpenseMachine creates the expense machine positioned at status.
// Any state may move to any of APPROVED, REJECTED or PAID.
func BuildExpenseMachine(status string) (domainwf.StateMachine, error) {
	states := []domainwf.State{
		domainwf.StatePending,
		domainwf.StateApproved,
		domainwf.StateRejected,
		domainwf.StatePaid,
	}
	builder := domainwf.NewBuilder(states...)

	for _, s := range states {
		builder.Configure(s).
			Permit(domainwf.TriggerApprove, domainwf.StateApproved).
			Permit(domainwf.TriggerReject, domainwf.StateRejected).
			Permit(domainwf.TriggerPay, domainwf.StatePaid)
	}

	return builder.BuildFrom(domainwf.State(status))
}

// BuildQuotationMachine creates the one-shot quotation machine positioned at status
func BuildQuotationMachine(status string) (domainwf.StateMachine, error) {
	builder := domainwf.NewBuilder(
		domainwf.StatePending,
		domainwf.StateAccepted,
		domainwf.StateRejected,
	)

	builder.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerAccept, domainwf.StateAccepted).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	builder.Final(domainwf.StateAccepted, domainwf.StateRejected)

	return builder.BuildFrom(domainwf.State(status))
}
