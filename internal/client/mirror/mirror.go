// Package mirror keeps the client's read-only copy of the room roster. It is
// fed by server events only and never invents participants.
package mirror

import (
	"slices"
	"sync"

	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/protocol"
)

type Room struct {
	ID          domain.RoomID
	Name        string
	Description string
	IsPrivate   bool
}

type Mirror struct {
	mu           sync.RWMutex
	self         domain.SessionID
	room         Room
	order        []domain.SessionID
	participants map[domain.SessionID]domain.Participant
}

func New() *Mirror {
	return &Mirror{participants: make(map[domain.SessionID]domain.Participant)}
}

// Apply folds a server event into the mirror and reports whether it was a
// roster event. Non-roster tags are ignored.
func (m *Mirror) Apply(env protocol.Envelope) (bool, error) {
	switch env.Type {
	case protocol.TagRosterSnapshot:
		var s protocol.RosterSnapshot
		if err := protocol.DecodePayload(env, &s); err != nil {
			return true, err
		}
		m.Reset(s)
	case protocol.TagParticipantJoined:
		var v protocol.ParticipantView
		if err := protocol.DecodePayload(env, &v); err != nil {
			return true, err
		}
		m.Joined(v)
	case protocol.TagParticipantLeft:
		var v protocol.ParticipantView
		if err := protocol.DecodePayload(env, &v); err != nil {
			return true, err
		}
		m.Left(v.SessionID)
	case protocol.TagPositionChanged:
		var p protocol.PositionChanged
		if err := protocol.DecodePayload(env, &p); err != nil {
			return true, err
		}
		m.Moved(p)
	default:
		return false, nil
	}
	return true, nil
}

// Reset replaces the whole roster with a snapshot.
func (m *Mirror) Reset(s protocol.RosterSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.self = s.Self
	m.room = Room{ID: s.RoomID, Name: s.RoomName, Description: s.RoomDescription, IsPrivate: s.IsPrivate}
	m.order = m.order[:0]
	clear(m.participants)
	for _, v := range s.Participants {
		m.put(protocol.ParticipantOf(v))
	}
}

// Joined inserts or overwrites a participant; overwriting keeps its place.
func (m *Mirror) Joined(v protocol.ParticipantView) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(protocol.ParticipantOf(v))
}

func (m *Mirror) Left(sid domain.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.participants[sid]; !ok {
		return
	}
	delete(m.participants, sid)
	m.order = slices.DeleteFunc(m.order, func(s domain.SessionID) bool { return s == sid })
}

// Moved applies a position change; unknown sessions are ignored.
func (m *Mirror) Moved(p protocol.PositionChanged) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.participants[p.SessionID]
	if !ok {
		return
	}
	cur.Position = domain.Position{X: p.X, Y: p.Y}
	if p.AnimationState != "" {
		cur.Animation = p.AnimationState
	}
	m.participants[p.SessionID] = cur
}

// MoveSelf records the local participant's own position, which the server
// does not echo back.
func (m *Mirror) MoveSelf(pos domain.Position, animation string) {
	m.mu.RLock()
	self := m.self
	m.mu.RUnlock()
	m.Moved(protocol.PositionChanged{SessionID: self, X: pos.X, Y: pos.Y, AnimationState: animation})
}

func (m *Mirror) put(p domain.Participant) {
	if _, ok := m.participants[p.SessionID]; !ok {
		m.order = append(m.order, p.SessionID)
	}
	m.participants[p.SessionID] = p
}

func (m *Mirror) Self() domain.SessionID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.self
}

func (m *Mirror) Room() Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.room
}

func (m *Mirror) Get(sid domain.SessionID) (domain.Participant, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.participants[sid]
	return p, ok
}

// DisplayName satisfies mesh.Names.
func (m *Mirror) DisplayName(sid domain.SessionID) (string, bool) {
	p, ok := m.Get(sid)
	return p.DisplayName, ok
}

// Participants lists the roster in arrival order.
func (m *Mirror) Participants() []domain.Participant {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Participant, 0, len(m.order))
	for _, sid := range m.order {
		out = append(out, m.participants[sid])
	}
	return out
}

func (m *Mirror) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}
