package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Spaces/internal/client/mesh"
	"github.com/dkeye/Spaces/internal/domain"
)

var (
	ErrClosedByRemote = fmt.Errorf("closed by remote: %w", domain.ErrPeerConnection)
	ErrUnavailable    = fmt.Errorf("remote not reachable: %w", domain.ErrPeerConnection)
	errNoTracks       = errors.New("local stream has no tracks")
)

// OfferHandler decides on inbound offers; an error rejects the call.
type OfferHandler func(remote domain.SessionID, offer mesh.Offer) error

// trackSource is implemented by local streams that can feed a peer connection.
type trackSource interface {
	Tracks() []webrtc.TrackLocal
}

// Dialer implements mesh.Dialer with one pion PeerConnection per call.
type Dialer struct {
	cfg webrtc.Configuration

	mu       sync.RWMutex
	signaler Signaler
	offers   OfferHandler
	calls    map[string]*call

	log zerolog.Logger
}

func NewDialer(cfg webrtc.Configuration, signaler Signaler) *Dialer {
	return &Dialer{
		cfg:      cfg,
		signaler: signaler,
		calls:    make(map[string]*call),
		log:      log.With().Str("module", "adapters.rtc").Logger(),
	}
}

// SetSignaler switches the signaling path for future signals.
func (d *Dialer) SetSignaler(s Signaler) {
	d.mu.Lock()
	d.signaler = s
	d.mu.Unlock()
}

func (d *Dialer) OnOffer(h OfferHandler) {
	d.mu.Lock()
	d.offers = h
	d.mu.Unlock()
}

func (d *Dialer) Dial(ctx context.Context, remote domain.SessionID, local mesh.LocalStream, obs mesh.Observer) (mesh.Call, error) {
	c, err := d.prepare(ctx, uuid.NewString(), remote, local, obs)
	if err != nil {
		return nil, err
	}
	offer, err := c.conn.CreateOffer()
	if err != nil {
		c.shutdown(ctx, false)
		return nil, fmt.Errorf("offer to %s: %w", remote, err)
	}
	if err := d.send(ctx, remote, Signal{CallID: c.id, Kind: KindOffer, SDP: offer.SDP}); err != nil {
		c.shutdown(ctx, false)
		return nil, fmt.Errorf("offer to %s: %w", remote, err)
	}
	c.ready(ctx)
	return c, nil
}

func (d *Dialer) Accept(ctx context.Context, remote domain.SessionID, offer mesh.Offer, local mesh.LocalStream, obs mesh.Observer) (mesh.Call, error) {
	c, err := d.prepare(ctx, offer.CallID, remote, local, obs)
	if err != nil {
		return nil, err
	}
	answer, err := c.conn.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP})
	if err != nil {
		c.shutdown(ctx, true)
		return nil, fmt.Errorf("answer %s: %w", remote, err)
	}
	if err := d.send(ctx, remote, Signal{CallID: c.id, Kind: KindAnswer, SDP: answer.SDP}); err != nil {
		c.shutdown(ctx, false)
		return nil, fmt.Errorf("answer %s: %w", remote, err)
	}
	c.ready(ctx)
	return c, nil
}

func (d *Dialer) prepare(ctx context.Context, id string, remote domain.SessionID, local mesh.LocalStream, obs mesh.Observer) (*call, error) {
	src, ok := local.(trackSource)
	if !ok || len(src.Tracks()) == 0 {
		return nil, errNoTracks
	}
	conn, err := NewWebRTCConnection(d.cfg, remote)
	if err != nil {
		return nil, fmt.Errorf("peer connection for %s: %w", remote, err)
	}
	c := &call{
		id:     id,
		remote: remote,
		d:      d,
		conn:   conn,
		obs:    obs,
		log:    d.log.With().Str("remote", string(remote)).Str("call", id).Logger(),
	}
	conn.OnICECandidate(func(ci webrtc.ICECandidateInit) { c.localCandidate(ctx, ci) })
	conn.OnTrack(c.onTrack)
	conn.OnFailed(func(err error) { c.fail(ctx, err) })

	for _, t := range src.Tracks() {
		if _, err := conn.AddLocalTrack(t); err != nil {
			conn.Close()
			return nil, fmt.Errorf("add track %s: %w", t.ID(), err)
		}
	}
	if err := conn.Start(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	d.mu.Lock()
	d.calls[id] = c
	d.mu.Unlock()
	return c, nil
}

// HandleSignal applies a signal from remote. Offers are passed to the
// OfferHandler; signals for unknown calls are dropped.
func (d *Dialer) HandleSignal(ctx context.Context, from domain.SessionID, s Signal) {
	if s.Kind == KindOffer {
		d.mu.RLock()
		h := d.offers
		d.mu.RUnlock()
		err := ErrUnavailable
		if h != nil {
			err = h(from, mesh.Offer{CallID: s.CallID, SDP: s.SDP})
		}
		if err != nil {
			d.log.Debug().Err(err).Str("remote", string(from)).Str("call", s.CallID).Msg("offer rejected")
			_ = d.send(ctx, from, Signal{CallID: s.CallID, Kind: KindBye})
		}
		return
	}

	c, ok := d.lookup(s.CallID, from)
	if !ok {
		d.log.Debug().Str("remote", string(from)).Str("call", s.CallID).Str("kind", string(s.Kind)).Msg("signal for unknown call")
		return
	}
	switch s.Kind {
	case KindAnswer:
		if err := c.conn.ApplyAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: s.SDP}); err != nil {
			c.fail(ctx, fmt.Errorf("apply answer: %w: %w", domain.ErrPeerConnection, err))
		}
	case KindCandidate:
		if s.Candidate == nil {
			return
		}
		if err := c.conn.AddICECandidate(*s.Candidate); err != nil {
			c.log.Warn().Err(err).Msg("add ice candidate")
		}
	case KindBye:
		if c.shutdown(ctx, false) {
			c.notifyFailed(ErrClosedByRemote)
		}
	}
}

// Unavailable fails every call to remote; the broker could not reach it.
func (d *Dialer) Unavailable(ctx context.Context, remote domain.SessionID) {
	d.mu.RLock()
	var hit []*call
	for _, c := range d.calls {
		if c.remote == remote {
			hit = append(hit, c)
		}
	}
	d.mu.RUnlock()
	for _, c := range hit {
		if c.shutdown(ctx, false) {
			c.notifyFailed(ErrUnavailable)
		}
	}
}

// Stats sums received media per remote.
func (d *Dialer) Stats() map[domain.SessionID]TrackStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[domain.SessionID]TrackStats, len(d.calls))
	for _, c := range d.calls {
		sum := out[c.remote]
		for _, st := range c.stats() {
			sum.Packets += st.Packets
			sum.Bytes += st.Bytes
			sum.Lost += st.Lost
		}
		out[c.remote] = sum
	}
	return out
}

// CloseAll shuts every call down without notifying observers.
func (d *Dialer) CloseAll(ctx context.Context) {
	d.mu.RLock()
	calls := make([]*call, 0, len(d.calls))
	for _, c := range d.calls {
		calls = append(calls, c)
	}
	d.mu.RUnlock()
	for _, c := range calls {
		c.shutdown(ctx, true)
	}
}

func (d *Dialer) lookup(id string, from domain.SessionID) (*call, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.calls[id]
	if !ok || c.remote != from {
		return nil, false
	}
	return c, true
}

func (d *Dialer) forget(id string) {
	d.mu.Lock()
	delete(d.calls, id)
	d.mu.Unlock()
}

func (d *Dialer) send(ctx context.Context, to domain.SessionID, s Signal) error {
	d.mu.RLock()
	sig := d.signaler
	d.mu.RUnlock()
	if sig == nil {
		return ErrUnavailable
	}
	return sig.Send(ctx, to, s)
}
