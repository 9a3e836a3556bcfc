package rtc

import (
	"context"
	"errors"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Spaces/internal/client/mesh"
)

var ErrNoDevices = errors.New("no capture devices")

const (
	audioFrame = 20 * time.Millisecond
	videoFrame = 100 * time.Millisecond
)

// opusSilence is a single Opus DTX frame.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// blankFrame stands in for a camera frame in the headless client.
var blankFrame = []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a}

// Capture is the headless capture source. It yields silent audio and blank
// video frames on the enabled kinds.
type Capture struct {
	Video bool
	Audio bool
}

func (c Capture) Acquire(ctx context.Context) (mesh.LocalStream, error) {
	if !c.Video && !c.Audio {
		return nil, ErrNoDevices
	}
	ctx, cancel := context.WithCancel(ctx)
	m := &LocalMedia{cancel: cancel}

	if c.Audio {
		track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "spaces")
		if err != nil {
			cancel()
			return nil, err
		}
		m.audio = NewOutTrack(track)
		go pump(ctx, m.audio, opusSilence, audioFrame)
	}
	if c.Video {
		track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "spaces")
		if err != nil {
			cancel()
			return nil, err
		}
		m.video = NewOutTrack(track)
		go pump(ctx, m.video, blankFrame, videoFrame)
	}
	return m, nil
}

// LocalMedia implements mesh.LocalStream over pion sample tracks.
type LocalMedia struct {
	video  *OutTrack
	audio  *OutTrack
	cancel context.CancelFunc
}

func (m *LocalMedia) Tracks() []webrtc.TrackLocal {
	out := make([]webrtc.TrackLocal, 0, 2)
	if m.audio != nil {
		out = append(out, m.audio.Track)
	}
	if m.video != nil {
		out = append(out, m.video.Track)
	}
	return out
}

func (m *LocalMedia) SetVideo(on bool) { setTrack(m.video, on) }

func (m *LocalMedia) SetAudio(on bool) { setTrack(m.audio, on) }

func (m *LocalMedia) Close() {
	if m.audio != nil {
		m.audio.MarkDelete()
	}
	if m.video != nil {
		m.video.MarkDelete()
	}
	m.cancel()
}

func setTrack(ot *OutTrack, on bool) {
	if ot == nil {
		return
	}
	if on {
		ot.MarkOk()
	} else {
		ot.MarkMuted()
	}
}

func pump(ctx context.Context, ot *OutTrack, frame []byte, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		switch ot.GetState() {
		case TrackStateDelete:
			return
		case TrackStateMuted:
		case TrackStateOk:
			if err := ot.Track.WriteSample(media.Sample{Data: frame, Duration: every}); err != nil {
				log.Error().Err(err).Str("module", "adapters.rtc").Str("track", ot.Track.ID()).Msg("write sample, stopping track")
				ot.MarkDelete()
				return
			}
		}
	}
}
