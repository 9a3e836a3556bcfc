package core

import "github.com/dkeye/Spaces/internal/domain"

// RoomInfo is a read-only listing entry for a live room.
type RoomInfo struct {
	ID               domain.RoomID   `json:"roomId"`
	Name             domain.RoomName `json:"roomName"`
	IsPrivate        bool            `json:"isPrivate"`
	ParticipantCount int             `json:"participantCount"`
}
