package mesh

import (
	"context"

	"github.com/dkeye/Spaces/internal/domain"
)

// Offer is an inbound call request as delivered by the signaling layer.
type Offer struct {
	CallID string
	SDP    string
}

// Observer receives the progress of one call. Callbacks may arrive on any
// goroutine and after the call was superseded.
type Observer struct {
	Stream func()
	Failed func(err error)
}

// Dialer places and answers media calls.
type Dialer interface {
	Dial(ctx context.Context, remote domain.SessionID, local LocalStream, obs Observer) (Call, error)
	Accept(ctx context.Context, remote domain.SessionID, offer Offer, local LocalStream, obs Observer) (Call, error)
}

type Call interface {
	Close() error
}

// MediaSource acquires the local capture stream.
type MediaSource interface {
	Acquire(ctx context.Context) (LocalStream, error)
}

type LocalStream interface {
	SetVideo(on bool)
	SetAudio(on bool)
	Close()
}
