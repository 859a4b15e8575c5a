package ticket

// transitions is the fixed status state machine. A status absent from the
// map (or mapped to an empty list) is terminal.
var transitions = map[Status][]Status{
	StatusProposed:             {StatusApproved, StatusRejected},
	StatusApproved:             {StatusInProgress, StatusRejected},
	StatusInProgress:           {StatusImplemented, StatusApproved, StatusOnHold},
	StatusImplemented:          {StatusInProgress},
	StatusRejected:             {StatusProposed},
	StatusOnHold:               {StatusInProgress, StatusApproved},
	StatusPartiallyImplemented: {StatusImplemented, StatusInProgress},
	StatusSuperseded:           {},
	StatusDeprecated:           {},
	StatusDuplicate:            {},
}

// AllowedTransitions returns the valid next states for a status. The
// returned slice is a copy.
func AllowedTransitions(from Status) []Status {
	allowed := transitions[from]
	out := make([]Status, len(allowed))
	copy(out, allowed)

	return out
}

// CanTransition reports whether the edge from -> to is in the table.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}

// checkTransition validates an edge, returning a descriptive error naming
// the allowed next states when the edge is not permitted.
func checkTransition(code string, from, to Status) error {
	if !IsValidStatus(to) {
		return &ValidationError{Field: "status", Msg: string(to) + " is not a known status"}
	}

	if !CanTransition(from, to) {
		return &InvalidTransitionError{Code: code, From: from, To: to, Allowed: AllowedTransitions(from)}
	}

	return nil
}
