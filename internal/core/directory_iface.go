package core

import (
	"context"
	"errors"

	"github.com/dkeye/Spaces/internal/domain"
)

var ErrRoomExists = errors.New("room record already exists")

// DirectoryStore persists private room records.
// Get and the player mutations return domain.ErrRoomNotFound for a missing record.
type DirectoryStore interface {
	Create(ctx context.Context, rec domain.DirectoryRecord) error
	Get(ctx context.Context, id domain.RoomID) (domain.DirectoryRecord, error)
	AddPlayer(ctx context.Context, id domain.RoomID, p domain.DirectoryPlayer) error
	RemovePlayer(ctx context.Context, id domain.RoomID, sid domain.SessionID) error
	Delete(ctx context.Context, id domain.RoomID) error
	List(ctx context.Context) ([]domain.DirectoryRecord, error)
}
