package shell

// State is a session's position in its lifecycle.  States only move
// forward: Created → Running → Draining → Closed (Draining is skipped
// when a session is closed without ever being read).
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CanWrite reports whether Write is valid in this state.
func (s State) CanWrite() bool { return s == StateRunning }

// CanRead reports whether Read is valid in this state.
func (s State) CanRead() bool { return s == StateRunning || s == StateDraining }
