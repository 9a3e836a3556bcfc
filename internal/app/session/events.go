package session

import (
	"slices"

	"github.com/dkeye/Spaces/internal/domain"
)

// Event is an outbound message produced by a room. Payload is a value copy;
// To lists the recipients computed when the event was produced.
type Event struct {
	Room    domain.RoomID
	Tag     string
	Payload any
	To      []domain.SessionID
}

// Sink receives events in the order each room produced them.
// Deliver is called from the room goroutine and must not block.
type Sink interface {
	Deliver(evt Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Deliver(evt Event) { f(evt) }

func (r *Room) toAll() []domain.SessionID {
	return slices.Clone(r.order)
}

func (r *Room) toAllExcept(sid domain.SessionID) []domain.SessionID {
	out := make([]domain.SessionID, 0, len(r.order))
	for _, id := range r.order {
		if id != sid {
			out = append(out, id)
		}
	}
	return out
}

func toOne(sid domain.SessionID) []domain.SessionID {
	return []domain.SessionID{sid}
}

func (r *Room) emit(tag string, payload any, to []domain.SessionID) {
	if len(to) == 0 {
		return
	}
	r.sink.Deliver(Event{Room: r.meta.ID, Tag: tag, Payload: payload, To: to})
}
