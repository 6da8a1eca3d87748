package client

// State of an exchange. Transitions only go forward.
type State uint32

const (
	StateResolving State = iota
	StateConnecting
	StateSending
	StateAwaitingHeader
	StateAwaitingBody
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateConnecting:
		return "connecting"
	case StateSending:
		return "sending"
	case StateAwaitingHeader:
		return "awaiting-header"
	case StateAwaitingBody:
		return "awaiting-body"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

func (s State) Terminal() bool { return s == StateComplete || s == StateFailed }

// failureKind is the kind reported when the step of s can't go on.
func (s State) failureKind() Kind {
	switch s {
	case StateResolving:
		return KindResolution
	case StateConnecting:
		return KindConnect
	case StateSending:
		return KindSend
	case StateAwaitingHeader:
		return KindRecvHeader
	case StateAwaitingBody:
		return KindRecvBody
	}
	return 0
}
