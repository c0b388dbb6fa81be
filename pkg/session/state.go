package session

// State is the connection state of the session. Disconnect is re-entrant:
// it can be reached from any state and repeating it is a no-op.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateJoinPending  State = "join_pending"
	StateInRoom       State = "in_room"
)

// Ordinal maps the state onto a monotonic scale for instrumentation.
func (s State) Ordinal() int {
	switch s {
	case StateConnecting:
		return 1
	case StateJoinPending:
		return 2
	case StateInRoom:
		return 3
	default:
		return 0
	}
}
