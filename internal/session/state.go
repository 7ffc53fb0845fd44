package session

// State is where a controller is in its single-run lifecycle
type State int

const (
	Idle State = iota
	Launched
	Navigating
	Ready
	TimedOut
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Launched:
		return "launched"
	case Navigating:
		return "navigating"
	case Ready:
		return "ready"
	case TimedOut:
		return "timed-out"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
