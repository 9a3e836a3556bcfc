package rtc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Spaces/internal/domain"
)

type SignalKind string

const (
	KindOffer     SignalKind = "offer"
	KindAnswer    SignalKind = "answer"
	KindCandidate SignalKind = "candidate"
	KindBye       SignalKind = "bye"
)

// Signal is the opaque payload carried by the broker or by signalRelay.
type Signal struct {
	CallID    string                   `json:"callId"`
	Kind      SignalKind               `json:"kind"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// Signaler delivers a Signal to one remote session.
type Signaler interface {
	Send(ctx context.Context, to domain.SessionID, s Signal) error
}

func DecodeSignal(raw json.RawMessage) (Signal, error) {
	var s Signal
	if err := json.Unmarshal(raw, &s); err != nil {
		return Signal{}, fmt.Errorf("decode signal: %w", err)
	}
	if s.CallID == "" || s.Kind == "" {
		return Signal{}, fmt.Errorf("decode signal: missing call id or kind")
	}
	return s, nil
}
