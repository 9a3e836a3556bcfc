package mesh

import "github.com/dkeye/Spaces/internal/domain"

// link is the manager's record of one remote. gen changes on every
// transition that invalidates the current call, so callbacks carrying an
// older gen are ignored.
type link struct {
	domain.PeerLink

	call     Call
	gen      uint64
	failures int
	timer    Timer
	inbound  bool
	attached bool
	departed bool
}

func newLink(remote domain.SessionID) *link {
	return &link{PeerLink: domain.PeerLink{
		RemoteSessionID: remote,
		State:           domain.LinkAbsent,
		VideoEnabled:    true,
		AudioEnabled:    true,
	}}
}

// toConnecting starts a new attempt and returns its gen.
func (l *link) toConnecting(inbound bool) uint64 {
	l.gen++
	l.State = domain.LinkConnecting
	l.inbound = inbound
	l.stopTimer()
	return l.gen
}

func (l *link) toActive() {
	l.State = domain.LinkActive
	l.failures = 0
	l.RetryCount = 0
}

// toClosed ends the current attempt and hands back what must be released
// outside the lock.
func (l *link) toClosed() (call Call, detach bool) {
	l.gen++
	l.State = domain.LinkClosed
	call, l.call = l.call, nil
	detach, l.attached = l.attached, false
	l.stopTimer()
	return call, detach
}

func (l *link) stopTimer() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}
