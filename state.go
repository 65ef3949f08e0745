package quest

// State is the lifecycle status of a Quest.
type State int

const (
	// StatePending is the initial state of every quest, including quests
	// derived by Select.
	StatePending State = iota
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is Completed or Failed.
//
// Terminal states are a convention for callers: the library never moves a
// quest back to Pending, but it also does not stop a second finalization.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}
