package rtc

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/dkeye/Spaces/internal/client/mesh"
	"github.com/dkeye/Spaces/internal/domain"
)

// call is one PeerConnection to a remote, keyed by call id.
type call struct {
	id     string
	remote domain.SessionID
	d      *Dialer
	conn   *WebRTCConnection
	obs    mesh.Observer
	log    zerolog.Logger

	mu       sync.Mutex
	sent     bool
	local    []webrtc.ICECandidateInit
	tracks   []*RemoteMedia
	streamed bool
	done     bool
}

// Close hangs up and tells the remote. The observer is not called.
func (c *call) Close() error {
	c.shutdown(context.Background(), true)
	return nil
}

// ready marks the description as sent and flushes held local candidates.
func (c *call) ready(ctx context.Context) {
	c.mu.Lock()
	c.sent = true
	held := c.local
	c.local = nil
	c.mu.Unlock()
	for i := range held {
		c.sendCandidate(ctx, held[i])
	}
}

func (c *call) localCandidate(ctx context.Context, ci webrtc.ICECandidateInit) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	if !c.sent {
		c.local = append(c.local, ci)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.sendCandidate(ctx, ci)
}

func (c *call) sendCandidate(ctx context.Context, ci webrtc.ICECandidateInit) {
	if err := c.d.send(ctx, c.remote, Signal{CallID: c.id, Kind: KindCandidate, Candidate: &ci}); err != nil {
		c.log.Debug().Err(err).Msg("send candidate")
	}
}

func (c *call) onTrack(ctx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	rm := NewRemoteMedia(track)
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.tracks = append(c.tracks, rm)
	first := !c.streamed
	c.streamed = true
	c.mu.Unlock()

	logger := c.log.With().Str("kind", track.Kind().String()).Logger()
	go rm.loop(ctx, &logger)
	if first && c.obs.Stream != nil {
		c.obs.Stream()
	}
}

func (c *call) stats() []TrackStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TrackStats, 0, len(c.tracks))
	for _, t := range c.tracks {
		out = append(out, t.Stats())
	}
	return out
}

// fail tears the call down and reports err to the observer.
func (c *call) fail(ctx context.Context, err error) {
	if c.shutdown(ctx, true) {
		c.log.Warn().Err(err).Msg("call failed")
		c.notifyFailed(err)
	}
}

func (c *call) notifyFailed(err error) {
	if c.obs.Failed != nil {
		c.obs.Failed(err)
	}
}

// shutdown closes the connection once; it reports whether this call did it.
func (c *call) shutdown(ctx context.Context, sendBye bool) bool {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return false
	}
	c.done = true
	c.local = nil
	c.mu.Unlock()

	c.d.forget(c.id)
	if sendBye {
		if err := c.d.send(ctx, c.remote, Signal{CallID: c.id, Kind: KindBye}); err != nil {
			c.log.Debug().Err(err).Msg("send bye")
		}
	}
	c.conn.Close()
	return true
}
