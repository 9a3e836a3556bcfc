package directory

import "github.com/dkeye/Spaces/internal/domain"

// storedRecord is the persisted shape shared by the redis (msgpack) and
// mongo (bson) backends.
type storedRecord struct {
	RoomID          string         `msgpack:"roomId" bson:"roomId"`
	RoomName        string         `msgpack:"roomName" bson:"roomName"`
	RoomDescription string         `msgpack:"roomDescription" bson:"roomDescription"`
	RoomPassword    string         `msgpack:"roomPassword" bson:"roomPassword"`
	IsPrivate       bool           `msgpack:"isPrivate" bson:"isPrivate"`
	Players         []storedPlayer `msgpack:"players" bson:"players"`
}

type storedPlayer struct {
	SessionID string `msgpack:"sessionId" bson:"sessionId"`
	Name      string `msgpack:"name" bson:"name"`
}

func toStored(rec domain.DirectoryRecord) storedRecord {
	out := storedRecord{
		RoomID:          string(rec.RoomID),
		RoomName:        string(rec.RoomName),
		RoomDescription: rec.RoomDescription,
		RoomPassword:    rec.RoomPassword,
		IsPrivate:       rec.IsPrivate,
		Players:         make([]storedPlayer, 0, len(rec.Players)),
	}
	for _, p := range rec.Players {
		out.Players = append(out.Players, toStoredPlayer(p))
	}
	return out
}

func toStoredPlayer(p domain.DirectoryPlayer) storedPlayer {
	return storedPlayer{SessionID: string(p.SessionID), Name: p.Name}
}

func fromStored(s storedRecord) domain.DirectoryRecord {
	rec := domain.DirectoryRecord{
		RoomID:          domain.RoomID(s.RoomID),
		RoomName:        domain.RoomName(s.RoomName),
		RoomDescription: s.RoomDescription,
		RoomPassword:    s.RoomPassword,
		IsPrivate:       s.IsPrivate,
		Players:         make([]domain.DirectoryPlayer, 0, len(s.Players)),
	}
	for _, p := range s.Players {
		rec.Players = append(rec.Players, domain.DirectoryPlayer{SessionID: domain.SessionID(p.SessionID), Name: p.Name})
	}
	return rec
}
