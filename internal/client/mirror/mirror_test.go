package mirror

import (
	"testing"

	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/protocol"
)

func envelope(t *testing.T, tag string, payload any) protocol.Envelope {
	t.Helper()
	frame, err := protocol.Encode(tag, payload)
	if err != nil {
		t.Fatal(err)
	}
	env, err := protocol.Decode(frame)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func ids(ps []domain.Participant) []domain.SessionID {
	out := make([]domain.SessionID, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.SessionID)
	}
	return out
}

func TestMirrorFollowsEvents(t *testing.T) {
	m := New()
	events := []protocol.Envelope{
		envelope(t, protocol.TagRosterSnapshot, protocol.RosterSnapshot{
			Self: "b", RoomID: "public", RoomName: "Lobby", CurrentParticipantCount: 2,
			Participants: []protocol.ParticipantView{{SessionID: "a", DisplayName: "Ann"}, {SessionID: "b", DisplayName: "Bo"}},
		}),
		envelope(t, protocol.TagParticipantJoined, protocol.ParticipantView{SessionID: "c", DisplayName: "Cy"}),
		envelope(t, protocol.TagPositionChanged, protocol.PositionChanged{SessionID: "a", X: 10, Y: 20, AnimationState: "walk_left"}),
		envelope(t, protocol.TagParticipantLeft, protocol.ParticipantView{SessionID: "b"}),
		envelope(t, protocol.TagChatMessage, protocol.ChatMessage{Text: "hi"}),
	}
	for i, env := range events {
		roster, err := m.Apply(env)
		if err != nil {
			t.Fatal(err)
		}
		if roster != (i < 4) {
			t.Fatalf("event %d roster = %v", i, roster)
		}
	}

	got := ids(m.Participants())
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("order = %v", got)
	}
	a, _ := m.Get("a")
	if a.Position != (domain.Position{X: 10, Y: 20}) || a.Animation != "walk_left" {
		t.Fatalf("a = %+v", a)
	}
	if m.Self() != "b" || m.Room().Name != "Lobby" {
		t.Fatalf("self %q room %+v", m.Self(), m.Room())
	}
}

func TestMirrorNeverFabricates(t *testing.T) {
	m := New()
	m.Reset(protocol.RosterSnapshot{Self: "a", Participants: []protocol.ParticipantView{{SessionID: "a"}}})
	m.Moved(protocol.PositionChanged{SessionID: "ghost", X: 1})
	m.Left("ghost")
	if m.Count() != 1 {
		t.Fatalf("count = %d", m.Count())
	}
	if _, ok := m.Get("ghost"); ok {
		t.Fatal("ghost fabricated")
	}
}

func TestMirrorLastEventWins(t *testing.T) {
	m := New()
	m.Joined(protocol.ParticipantView{SessionID: "a", DisplayName: "old"})
	m.Joined(protocol.ParticipantView{SessionID: "b", DisplayName: "Bo"})
	m.Joined(protocol.ParticipantView{SessionID: "a", DisplayName: "new"})

	name, ok := m.DisplayName("a")
	if !ok || name != "new" {
		t.Fatalf("name = %q", name)
	}
	if got := ids(m.Participants()); got[0] != "a" || len(got) != 2 {
		t.Fatalf("order = %v", got)
	}
}

func TestMirrorSnapshotReplaces(t *testing.T) {
	m := New()
	m.Joined(protocol.ParticipantView{SessionID: "stale"})
	m.Reset(protocol.RosterSnapshot{Self: "x", Participants: []protocol.ParticipantView{{SessionID: "x"}}})
	if got := ids(m.Participants()); len(got) != 1 || got[0] != "x" {
		t.Fatalf("after reset = %v", got)
	}
	m.MoveSelf(domain.Position{X: 3, Y: 4}, "")
	if p, _ := m.Get("x"); p.Position.X != 3 {
		t.Fatalf("self = %+v", p)
	}
}
