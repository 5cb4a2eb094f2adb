package backend

// State is the connection state of a mailbox backend. Transitions go
// through a single setter so that an explicit disconnect and a
// transport-initiated close are indistinguishable to callers.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}
