package protocol

import (
	"encoding/json"
	"time"

	"github.com/dkeye/Spaces/internal/domain"
)

type JoinRequest struct {
	RoomID      domain.RoomID `json:"roomId,omitempty"`
	Create      *CreateRoom   `json:"create,omitempty"`
	DisplayName string        `json:"displayName,omitempty"`
	AvatarKind  string        `json:"avatarKind,omitempty"`
	Password    string        `json:"password,omitempty"`
}

type CreateRoom struct {
	RoomName        string `json:"roomName"`
	RoomDescription string `json:"roomDescription,omitempty"`
	RoomPassword    string `json:"roomPassword,omitempty"`
	IsPrivate       bool   `json:"isPrivate"`
}

type ParticipantView struct {
	SessionID      domain.SessionID `json:"sessionId"`
	DisplayName    string           `json:"displayName"`
	X              float64          `json:"x"`
	Y              float64          `json:"y"`
	AnimationState string           `json:"animationState"`
	AvatarKind     string           `json:"avatarKind"`
}

type RosterSnapshot struct {
	Self                    domain.SessionID  `json:"self"`
	RoomID                  domain.RoomID     `json:"roomId"`
	RoomName                string            `json:"roomName"`
	RoomDescription         string            `json:"roomDescription,omitempty"`
	IsPrivate               bool              `json:"isPrivate"`
	CurrentParticipantCount int               `json:"currentParticipantCount"`
	Participants            []ParticipantView `json:"participants"`
}

// PositionUpdate is sent by a client for itself. SessionID is optional and,
// when set, must match the sender.
type PositionUpdate struct {
	SessionID      domain.SessionID `json:"sessionId,omitempty"`
	X              float64          `json:"x"`
	Y              float64          `json:"y"`
	AnimationState string           `json:"animationState,omitempty"`
}

type PositionChanged struct {
	SessionID      domain.SessionID `json:"sessionId"`
	X              float64          `json:"x"`
	Y              float64          `json:"y"`
	AnimationState string           `json:"animationState"`
}

type ChatMessage struct {
	Text      string           `json:"text"`
	Sender    domain.SessionID `json:"sender,omitempty"`
	Name      string           `json:"name,omitempty"`
	Timestamp time.Time        `json:"timestamp,omitzero"`
}

type SystemAnnouncement struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

type MediaStateChange struct {
	PeerID       domain.SessionID `json:"peerId,omitempty"`
	VideoEnabled bool             `json:"videoEnabled"`
	AudioEnabled bool             `json:"audioEnabled"`
}

type SignalRelay struct {
	Target domain.SessionID `json:"targetSessionId,omitempty"`
	From   domain.SessionID `json:"from,omitempty"`
	Signal json.RawMessage  `json:"signalPayload"`
}

type TaskView struct {
	ID        domain.TaskID `json:"id"`
	Text      string        `json:"text"`
	Completed bool          `json:"completed"`
	CreatedBy string        `json:"createdBy"`
	CreatedAt time.Time     `json:"createdAt"`
}

type TaskCreate struct {
	Text string `json:"text"`
}

type TaskRef struct {
	ID domain.TaskID `json:"id"`
}

type TaskSync struct {
	Tasks []TaskView `json:"tasks"`
}

type TaskNotification struct {
	Task   TaskView          `json:"task"`
	Action domain.TaskAction `json:"action"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// BrokerSignal is the broker socket payload. From is stamped by the broker.
type BrokerSignal struct {
	From   domain.SessionID `json:"from,omitempty"`
	To     domain.SessionID `json:"to"`
	Signal json.RawMessage  `json:"signal"`
}

// DirectoryEntry is a private room record as listed over HTTP. The password
// itself never leaves the server.
type DirectoryEntry struct {
	RoomID          domain.RoomID          `json:"roomId"`
	RoomName        domain.RoomName        `json:"roomName"`
	RoomDescription string                 `json:"roomDescription"`
	IsPrivate       bool                   `json:"isPrivate"`
	HasPassword     bool                   `json:"hasPassword"`
	Players         []DirectoryEntryPlayer `json:"players"`
}

type DirectoryEntryPlayer struct {
	SessionID domain.SessionID `json:"sessionId"`
	Name      string           `json:"name"`
}
