package domain

type (
	RoomName string
	RoomID   string
)

// PublicRoomID names the lobby joined when a client asks for no room.
const PublicRoomID RoomID = "public"

// RoomMeta is the immutable part of a room.
type RoomMeta struct {
	ID          RoomID
	Name        RoomName
	Description string
	Password    string
	IsPrivate   bool
}

// RoomConfig is what a creator provides.
type RoomConfig struct {
	Name        RoomName
	Description string
	Password    string
	IsPrivate   bool
}
