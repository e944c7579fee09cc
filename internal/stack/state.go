package stack

// State is a step of the deletion state machine of one stack.
type State int

const (
	StateNotFound State = iota
	StateExists
	StateTerminationCheck
	StateProtectedAbort
	StateProtectedOverridden
	StateUnprotected
	StatePreCleanup
	StateDeleteIssued
	StatePolling
	StateComplete
	StateFailed
	StateFatal
)

var stateNames = map[State]string{
	StateNotFound:            "NOT_FOUND",
	StateExists:              "EXISTS",
	StateTerminationCheck:    "TERMINATION_CHECK",
	StateProtectedAbort:      "PROTECTED_ABORT",
	StateProtectedOverridden: "PROTECTED_OVERRIDDEN",
	StateUnprotected:         "UNPROTECTED",
	StatePreCleanup:          "PRE_CLEANUP",
	StateDeleteIssued:        "DELETE_ISSUED",
	StatePolling:             "POLLING",
	StateComplete:            "COMPLETE",
	StateFailed:              "FAILED",
	StateFatal:               "FATAL",
}

func (state State) String() string {
	if name, ok := stateNames[state]; ok {
		return name
	}

	return "UNKNOWN"
}

// Done returns true for the states a deletion ends in.
func (state State) Done() bool {
	switch state {
	case StateNotFound, StateComplete, StateProtectedAbort, StateFatal:
		return true
	}

	return false
}
