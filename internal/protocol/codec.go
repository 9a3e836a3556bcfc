package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Spaces/internal/domain"
)

var (
	ErrUnsupportedVersion = errors.New("unsupported envelope version")
	ErrMissingType        = errors.New("envelope without type")
)

type Envelope struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode wraps payload into a versioned envelope. A nil payload is omitted.
func Encode(tag string, payload any) ([]byte, error) {
	env := Envelope{V: Version, Type: tag}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", tag, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode parses an envelope. Envelopes without a version are treated as v1.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.V == 0 {
		env.V = Version
	}
	if env.V > Version {
		return Envelope{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.V)
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	return env, nil
}

// DecodePayload unmarshals the envelope payload into v. An empty payload
// leaves v untouched.
func DecodePayload(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return nil
}

func ViewOf(p domain.Participant) ParticipantView {
	return ParticipantView{
		SessionID:      p.SessionID,
		DisplayName:    p.DisplayName,
		X:              p.Position.X,
		Y:              p.Position.Y,
		AnimationState: p.Animation,
		AvatarKind:     p.AvatarKind,
	}
}

func ParticipantOf(v ParticipantView) domain.Participant {
	return domain.Participant{
		SessionID:   v.SessionID,
		DisplayName: v.DisplayName,
		Position:    domain.Position{X: v.X, Y: v.Y},
		Animation:   v.AnimationState,
		AvatarKind:  v.AvatarKind,
	}
}

func TaskViewOf(t domain.Task) TaskView {
	return TaskView{
		ID:        t.ID,
		Text:      t.Text,
		Completed: t.Completed,
		CreatedBy: t.CreatedBy,
		CreatedAt: t.CreatedAt,
	}
}

func TaskViews(tasks []domain.Task) []TaskView {
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskViewOf(t))
	}
	return out
}

func DirectoryEntryOf(rec domain.DirectoryRecord) DirectoryEntry {
	players := make([]DirectoryEntryPlayer, 0, len(rec.Players))
	for _, p := range rec.Players {
		players = append(players, DirectoryEntryPlayer{SessionID: p.SessionID, Name: p.Name})
	}
	return DirectoryEntry{
		RoomID:          rec.RoomID,
		RoomName:        rec.RoomName,
		RoomDescription: rec.RoomDescription,
		IsPrivate:       rec.IsPrivate,
		HasPassword:     rec.RoomPassword != "",
		Players:         players,
	}
}
