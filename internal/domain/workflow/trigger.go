package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerApprove Trigger = "APPROVE"
	TriggerReject  Trigger = "REJECT"
	TriggerDraft   Trigger = "DRAFT"
	TriggerDeliver Trigger = "DELIVER"
	TriggerCancel  Trigger = "CANCEL"
	TriggerPay     Trigger = "PAY"
	TriggerAccept  Trigger = "ACCEPT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
