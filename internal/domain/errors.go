package domain

import "errors"

var (
	ErrDuplicateSession   = errors.New("session already joined")
	ErrWrongPassword      = errors.New("wrong room password")
	ErrRoomNotFound       = errors.New("room not found")
	ErrUnknownRelayTarget = errors.New("unknown relay target")
	ErrForgedIdentity     = errors.New("update for another session")
	ErrNotJoined          = errors.New("session is not in a room")
	ErrTaskNotFound       = errors.New("task not found")
	ErrEmptyText          = errors.New("empty text")

	ErrMediaAcquisition = errors.New("media acquisition failed")
	ErrPeerConnection   = errors.New("peer connection failed")
	ErrDirectoryWrite   = errors.New("directory write failed")
)
