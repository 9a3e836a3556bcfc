package protocol

import (
	"errors"

	"github.com/dkeye/Spaces/internal/domain"
)

var (
	ErrRateLimited = errors.New("rate limited")
	ErrBadPayload  = errors.New("bad payload")
)

const (
	CodeDuplicateSession   = "duplicate_session"
	CodeWrongPassword      = "wrong_password"
	CodeRoomNotFound       = "room_not_found"
	CodeUnknownRelayTarget = "unknown_relay_target"
	CodeForgedIdentity     = "forged_identity"
	CodeNotJoined          = "not_joined"
	CodeTaskNotFound       = "task_not_found"
	CodeEmptyText          = "empty_text"
	CodeDirectoryWrite     = "directory_unavailable"
	CodeRateLimited        = "rate_limited"
	CodeBadPayload         = "bad_payload"
	CodeInternal           = "internal"
)

var codes = []struct {
	err  error
	code string
}{
	{domain.ErrDuplicateSession, CodeDuplicateSession},
	{domain.ErrWrongPassword, CodeWrongPassword},
	{domain.ErrRoomNotFound, CodeRoomNotFound},
	{domain.ErrUnknownRelayTarget, CodeUnknownRelayTarget},
	{domain.ErrForgedIdentity, CodeForgedIdentity},
	{domain.ErrNotJoined, CodeNotJoined},
	{domain.ErrTaskNotFound, CodeTaskNotFound},
	{domain.ErrEmptyText, CodeEmptyText},
	{domain.ErrDirectoryWrite, CodeDirectoryWrite},
	{ErrRateLimited, CodeRateLimited},
	{ErrBadPayload, CodeBadPayload},
	{ErrUnsupportedVersion, CodeBadPayload},
	{ErrMissingType, CodeBadPayload},
}

// CodeOf maps an error to its wire code.
func CodeOf(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// ErrorOf maps a wire error back to the matching sentinel, or nil when the
// code has none.
func ErrorOf(code string) error {
	for _, c := range codes {
		if c.code == code && c.code != CodeBadPayload {
			return c.err
		}
	}
	return nil
}

func ErrorPayload(err error) Error {
	return Error{Code: CodeOf(err), Message: err.Error()}
}
