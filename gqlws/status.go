package gqlws

// Status is the connection lifecycle state.
//
// StatusReconnecting and StatusClosed are both disconnected states; the
// difference is that StatusReconnecting has exactly one deferred connect
// pending, while StatusClosed stays down until an explicit connect.
type Status int

const (
	StatusInitial Status = iota
	StatusConnecting
	StatusOpen
	StatusReconnecting
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusInitial:
		return "initial"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connected reports whether the transport handle is usable.
func (s Status) Connected() bool {
	return s == StatusOpen
}
