package domain

// DirectoryRecord is the persisted description of a private room.
type DirectoryRecord struct {
	RoomID          RoomID
	RoomName        RoomName
	RoomDescription string
	RoomPassword    string
	IsPrivate       bool
	Players         []DirectoryPlayer
}

type DirectoryPlayer struct {
	SessionID SessionID
	Name      string
}

func RecordOf(meta RoomMeta) DirectoryRecord {
	return DirectoryRecord{
		RoomID:          meta.ID,
		RoomName:        meta.Name,
		RoomDescription: meta.Description,
		RoomPassword:    meta.Password,
		IsPrivate:       meta.IsPrivate,
		Players:         []DirectoryPlayer{},
	}
}
