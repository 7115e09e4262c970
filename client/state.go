package client

// State is the lifecycle of one Client. Only Ready accepts commands.
type State int32

const (
	Disconnected State = iota
	Connecting
	AwaitingReady
	Ready
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case AwaitingReady:
		return "awaiting_ready"
	case Ready:
		return "ready"
	}
	return "unknown"
}
