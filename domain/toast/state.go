package toast

// State is the position of a single capture call in its state machine.
type State string

const (
	StateWaiting    State = "WAITING"
	StateExtracting State = "EXTRACTING"
	StateMatched    State = "MATCHED"
	StateUnmatched  State = "UNMATCHED"
	StateTimedOut   State = "TIMED_OUT"
)

// IsTerminal reports whether no further transitions can happen.
func (s State) IsTerminal() bool {
	return s == StateMatched || s == StateUnmatched || s == StateTimedOut
}

// FailureKind classifies an unsuccessful capture.
type FailureKind string

const (
	FailureNone     FailureKind = ""
	FailureNotFound FailureKind = "not_found"
	FailureTimeout  FailureKind = "timeout"
)
