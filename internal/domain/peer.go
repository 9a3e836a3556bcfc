package domain

type LinkState int

const (
	LinkAbsent LinkState = iota
	LinkConnecting
	LinkActive
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkAbsent:
		return "absent"
	case LinkConnecting:
		return "connecting"
	case LinkActive:
		return "active"
	case LinkClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PeerLink is the client-local view of the media link to one remote participant.
type PeerLink struct {
	RemoteSessionID SessionID
	State           LinkState
	RetryCount      int
	VideoEnabled    bool
	AudioEnabled    bool
}
