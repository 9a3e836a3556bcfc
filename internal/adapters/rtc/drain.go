package rtc

import (
	"context"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// RemoteMedia consumes one remote track. The headless client does not decode
// media, it only counts what arrives.
type RemoteMedia struct {
	Src *webrtc.TrackRemote

	packets atomic.Uint64
	bytes   atomic.Uint64
	lost    atomic.Uint64
	lastSeq atomic.Uint32
	started atomic.Bool
}

func NewRemoteMedia(src *webrtc.TrackRemote) *RemoteMedia {
	return &RemoteMedia{Src: src}
}

// loop reads RTP packets until ctx is done or the track ends.
func (r *RemoteMedia) loop(ctx context.Context, logger *zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("remote track ctx done")
			return
		default:
		}
		pkt, _, err := r.Src.ReadRTP()
		if err != nil {
			logger.Debug().Err(err).Msg("remote track read RTP error, stopping")
			return
		}
		r.count(pkt)
	}
}

func (r *RemoteMedia) count(pkt *rtp.Packet) {
	r.packets.Add(1)
	r.bytes.Add(uint64(len(pkt.Payload)))
	seq := uint32(pkt.SequenceNumber)
	if r.started.Swap(true) {
		if gap := uint16(seq - r.lastSeq.Load() - 1); gap > 0 && gap < 1<<15 {
			r.lost.Add(uint64(gap))
		}
	}
	r.lastSeq.Store(seq)
}

type TrackStats struct {
	Kind    string
	Packets uint64
	Bytes   uint64
	Lost    uint64
}

func (r *RemoteMedia) Stats() TrackStats {
	st := TrackStats{
		Packets: r.packets.Load(),
		Bytes:   r.bytes.Load(),
		Lost:    r.lost.Load(),
	}
	if r.Src != nil {
		st.Kind = r.Src.Kind().String()
	}
	return st
}
