package mesh

import "github.com/dkeye/Spaces/internal/domain"

// Names resolves display names for surface labels.
type Names interface {
	DisplayName(sid domain.SessionID) (string, bool)
}

// Renderer presents remote streams.
type Renderer interface {
	Attach(remote domain.SessionID, label string)
	Detach(remote domain.SessionID)
	Indicators(remote domain.SessionID, video, audio bool)
}

// Broadcaster announces local media toggles to the room.
type Broadcaster interface {
	BroadcastMediaState(video, audio bool) error
}

type nopRenderer struct{}

func (nopRenderer) Attach(domain.SessionID, string)         {}
func (nopRenderer) Detach(domain.SessionID)                 {}
func (nopRenderer) Indicators(domain.SessionID, bool, bool) {}

type noNames struct{}

func (noNames) DisplayName(domain.SessionID) (string, bool) { return "", false }
