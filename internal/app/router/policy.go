package router

import (
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/protocol"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

func (a BackpressureAction) String() string {
	switch a {
	case MarkSlow:
		return "mark_slow"
	case KickMember:
		return "kick"
	case DropFrame:
		return "drop"
	default:
		return "none"
	}
}

// Policy decides what to do with a client whose send buffer is full.
type Policy interface {
	OnBackPressure(room domain.RoomID, sid domain.SessionID, tag string) BackpressureAction
}

type SimplePolicy struct{}

// OnBackPressure drops position frames, which the next tick supersedes, and
// kicks on anything else.
func (SimplePolicy) OnBackPressure(_ domain.RoomID, _ domain.SessionID, tag string) BackpressureAction {
	if tag == protocol.TagPositionChanged {
		return DropFrame
	}
	return KickMember
}
