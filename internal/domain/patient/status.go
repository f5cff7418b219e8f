package patient

// Status is a canonical workflow state for a patient record.
type Status string

const (
	// StatusPending is the initial sentinel before the workflow starts.
	// It is not part of the ordered sequence.
	StatusPending Status = "pending"

	StatusRegistered        Status = "registered"
	StatusSpecimenCollected Status = "specimen_collected"
	StatusInProgress        Status = "in_progress"
	StatusResultDelivered   Status = "result_delivered"
	StatusCompleted         Status = "completed"

	// StatusCancelled is terminal and reachable from any state. It sits
	// outside the ordered sequence.
	StatusCancelled Status = "cancelled"
)

// StatusOrder is the canonical workflow sequence. It excludes the pending
// sentinel and the cancelled terminal state and never changes at runtime.
var StatusOrder = []Status{
	StatusRegistered,
	StatusSpecimenCollected,
	StatusInProgress,
	StatusResultDelivered,
	StatusCompleted,
}

// IndexOf returns the position of s in StatusOrder, or -1 for the pending
// sentinel, the cancelled state, and anything unknown.
func IndexOf(s Status) int {
	for i, o := range StatusOrder {
		if o == s {
			return i
		}
	}
	return -1
}

// IsValid reports whether s is a member of the canonical state set: the
// ordered sequence plus pending and cancelled.
func IsValid(s Status) bool {
	if s == StatusPending || s == StatusCancelled {
		return true
	}
	return IndexOf(s) >= 0
}

// Label returns a human-readable name for a status, used in notification
// subjects and the progress view.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusRegistered:
		return "Registered"
	case StatusSpecimenCollected:
		return "Specimen Collected"
	case StatusInProgress:
		return "In Progress"
	case StatusResultDelivered:
		return "Result Delivered"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}
