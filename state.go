// state.go
package serialhelper

// State is the lifecycle state of a Conn.
type State int

const (
	// StateClosed means no transport handle is live.
	StateClosed State = iota
	// StateOpening means an open attempt is in flight.
	StateOpening
	// StateOpen means the transport is live and the framing feed attached.
	StateOpen
	// StateClosing means a close was requested and the read loop has not
	// yet observed it.
	StateClosing
	// StateReconnecting means the connection is closed with a retry
	// scheduled.
	StateReconnecting
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}
