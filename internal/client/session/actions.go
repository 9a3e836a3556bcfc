package session

import (
	"context"
	"slices"

	"github.com/dkeye/Spaces/internal/adapters/rtc"
	"github.com/dkeye/Spaces/internal/client/mirror"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/protocol"
)

func (s *Session) Self() domain.SessionID { return s.mirror.Self() }

func (s *Session) Mirror() *mirror.Mirror { return s.mirror }

// SignalingPath reports whether signals currently go over the broker or the
// relay.
func (s *Session) SignalingPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Move records the local position. The ticker sends it if it changed.
func (s *Session) Move(x, y float64, animation string) {
	pos := domain.Position{X: x, Y: y}
	s.mu.Lock()
	defer s.mu.Unlock()
	if animation == "" {
		animation = s.anim
	}
	if pos == s.pos && animation == s.anim {
		return
	}
	s.pos, s.anim = pos, animation
	s.dirty = true
}

func (s *Session) Position() (domain.Position, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos, s.anim
}

func (s *Session) Chat(text string) error {
	return s.conn.Send(protocol.TagChatMessage, protocol.ChatMessage{Text: text})
}

func (s *Session) Announce(text string) error {
	return s.conn.Send(protocol.TagSystemAnnouncement, protocol.SystemAnnouncement{Text: text})
}

func (s *Session) CreateTask(text string) error {
	return s.conn.Send(protocol.TagTaskCreate, protocol.TaskCreate{Text: text})
}

func (s *Session) ToggleTask(id domain.TaskID) error {
	return s.conn.Send(protocol.TagTaskToggle, protocol.TaskRef{ID: id})
}

func (s *Session) DeleteTask(id domain.TaskID) error {
	return s.conn.Send(protocol.TagTaskDelete, protocol.TaskRef{ID: id})
}

// SyncTasks asks for the task list; the answer lands in Tasks.
func (s *Session) SyncTasks() error {
	return s.conn.Send(protocol.TagTaskSync, nil)
}

// Tasks is the last task list received.
func (s *Session) Tasks() []protocol.TaskView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tasks)
}

func (s *Session) SetVideo(on bool) { s.mesh.SetVideo(on) }

func (s *Session) SetAudio(on bool) { s.mesh.SetAudio(on) }

// RetryMedia acquires local capture again after a failure.
func (s *Session) RetryMedia(ctx context.Context) error {
	return s.mesh.AcquireMedia(ctx)
}

func (s *Session) MediaState() (video, audio, ready bool) {
	return s.mesh.LocalState()
}

// BroadcastMediaState implements mesh.Broadcaster.
func (s *Session) BroadcastMediaState(video, audio bool) error {
	return s.conn.Send(protocol.TagMediaStateChange, protocol.MediaStateChange{VideoEnabled: video, AudioEnabled: audio})
}

type Peer struct {
	Link  domain.PeerLink
	Name  string
	Stats rtc.TrackStats
}

// Peers lists every peer link with its label and receive statistics.
func (s *Session) Peers() []Peer {
	stats := s.dialer.Stats()
	links := s.mesh.Links()
	out := make([]Peer, 0, len(links))
	for _, l := range links {
		name, ok := s.mirror.DisplayName(l.RemoteSessionID)
		if !ok {
			name = string(l.RemoteSessionID)
		}
		out = append(out, Peer{Link: l, Name: name, Stats: stats[l.RemoteSessionID]})
	}
	return out
}

// Participants lists the mirrored roster in arrival order.
func (s *Session) Participants() []domain.Participant {
	return s.mirror.Participants()
}
