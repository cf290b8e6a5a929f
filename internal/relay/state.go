package relay

// State is a phase of the relay loop:
//
//	Idle -> Connecting -> Declaring (optional) -> Consuming
//	     -> {Forwarding -> Acking} -> Consuming ... -> Terminated
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateDeclaring
	StateConsuming
	StateForwarding
	StateAcking
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateDeclaring:
		return "declaring"
	case StateConsuming:
		return "consuming"
	case StateForwarding:
		return "forwarding"
	case StateAcking:
		return "acking"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
