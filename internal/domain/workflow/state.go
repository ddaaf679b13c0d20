package workflow

// State is a lifecycle state of a purchase order, expense or quotation
type State string

const (
	StatePending   State = "PENDING"
	StateDraft     State = "DRAFT"
	StateApproved  State = "APPROVED"
	StateRejected  State = "REJECTED"
	StateDelivered State = "DELIVERED"
	StateCancelled State = "CANCELLED"
	StatePaid      State = "PAID"
	StateAccepted  State = "ACCEPTED"
)

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// StateSet is the closed set of states a machine may occupy
type StateSet map[State]bool

// NewStateSet builds a StateSet from the given states
func NewStateSet(states ...State) StateSet {
	set := make(StateSet, len(states))
	for _, s := range states {
		set[s] = true
	}
	return set
}

// Contains reports whether s belongs to the set
func (ss StateSet) Contains(s State) bool {
	return ss[s]
}
