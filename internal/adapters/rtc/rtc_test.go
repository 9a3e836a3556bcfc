package rtc

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/pion/rtp"

	"github.com/dkeye/Spaces/internal/client/mesh"
	"github.com/dkeye/Spaces/internal/domain"
)

type sent struct {
	to  domain.SessionID
	sig Signal
}

type recordingSignaler struct {
	mu  sync.Mutex
	out []sent
}

func (r *recordingSignaler) Send(_ context.Context, to domain.SessionID, s Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, sent{to: to, sig: s})
	return nil
}

func (r *recordingSignaler) kind(k SignalKind) []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sent
	for _, s := range r.out {
		if s.sig.Kind == k {
			out = append(out, s)
		}
	}
	return out
}

func audioOnly(t *testing.T) *LocalMedia {
	t.Helper()
	s, err := Capture{Audio: true}.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s.(*LocalMedia)
}

func TestOutTrackStates(t *testing.T) {
	ot := &OutTrack{}
	if ot.GetState() != TrackStateOk {
		t.Fatal("new track should be ok")
	}
	ot.MarkMuted()
	if ot.GetState() != TrackStateMuted {
		t.Fatal("not muted")
	}
	ot.MarkOk()
	if ot.GetState() != TrackStateOk {
		t.Fatal("not unmuted")
	}
	ot.MarkDelete()
	ot.MarkOk()
	ot.MarkMuted()
	if ot.GetState() != TrackStateDelete {
		t.Fatal("deleted track came back")
	}
}

func TestCapture(t *testing.T) {
	if _, err := (Capture{}).Acquire(context.Background()); !errors.Is(err, ErrNoDevices) {
		t.Fatalf("err = %v, want ErrNoDevices", err)
	}

	s, err := Capture{Audio: true, Video: true}.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	lm := s.(*LocalMedia)
	if n := len(lm.Tracks()); n != 2 {
		t.Fatalf("tracks = %d", n)
	}
	lm.SetVideo(false)
	if lm.video.GetState() != TrackStateMuted || lm.audio.GetState() != TrackStateOk {
		t.Fatal("video toggle touched the wrong track")
	}
	lm.Close()
	if lm.audio.GetState() != TrackStateDelete || lm.video.GetState() != TrackStateDelete {
		t.Fatal("close left tracks alive")
	}
}

func TestRemoteMediaCountsLoss(t *testing.T) {
	r := NewRemoteMedia(nil)
	for _, seq := range []uint16{65534, 65535, 1, 2, 2} {
		r.count(&rtp.Packet{Header: rtp.Header{SequenceNumber: seq}, Payload: []byte{1, 2}})
	}
	st := r.Stats()
	if st.Packets != 5 || st.Bytes != 10 {
		t.Fatalf("stats = %+v", st)
	}
	if st.Lost != 1 {
		t.Fatalf("lost = %d, want 1", st.Lost)
	}
}

func TestDialSendsOfferAndCloseSendsBye(t *testing.T) {
	sig := &recordingSignaler{}
	d := NewDialer(DefaultWebRTCConfig(), sig)

	c, err := d.Dial(context.Background(), "b", audioOnly(t), mesh.Observer{
		Failed: func(err error) { t.Errorf("observer called on local close: %v", err) },
	})
	if err != nil {
		t.Fatal(err)
	}
	offers := sig.kind(KindOffer)
	if len(offers) != 1 || offers[0].to != "b" || !strings.Contains(offers[0].sig.SDP, "m=audio") {
		t.Fatalf("offers = %+v", offers)
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	byes := sig.kind(KindBye)
	if len(byes) != 1 || byes[0].sig.CallID != offers[0].sig.CallID {
		t.Fatalf("byes = %+v", byes)
	}
	if len(d.Stats()) != 0 {
		t.Fatal("closed call still tracked")
	}
}

func TestDialWithoutTracks(t *testing.T) {
	d := NewDialer(DefaultWebRTCConfig(), &recordingSignaler{})
	if _, err := d.Dial(context.Background(), "b", nil, mesh.Observer{}); err == nil {
		t.Fatal("dial without a stream succeeded")
	}
}

func TestRejectedOfferGetsBye(t *testing.T) {
	sig := &recordingSignaler{}
	d := NewDialer(DefaultWebRTCConfig(), sig)
	d.OnOffer(func(domain.SessionID, mesh.Offer) error { return mesh.ErrRejected })

	d.HandleSignal(context.Background(), "b", Signal{CallID: "c1", Kind: KindOffer, SDP: "v=0"})

	byes := sig.kind(KindBye)
	if len(byes) != 1 || byes[0].to != "b" || byes[0].sig.CallID != "c1" {
		t.Fatalf("byes = %+v", byes)
	}
}

func TestRemoteByeFailsCall(t *testing.T) {
	sig := &recordingSignaler{}
	d := NewDialer(DefaultWebRTCConfig(), sig)

	failed := make(chan error, 1)
	_, err := d.Dial(context.Background(), "b", audioOnly(t), mesh.Observer{
		Failed: func(err error) { failed <- err },
	})
	if err != nil {
		t.Fatal(err)
	}
	id := sig.kind(KindOffer)[0].sig.CallID

	// A bye from someone else is not for this call.
	d.HandleSignal(context.Background(), "c", Signal{CallID: id, Kind: KindBye})
	select {
	case err := <-failed:
		t.Fatalf("call failed on foreign bye: %v", err)
	default:
	}

	d.HandleSignal(context.Background(), "b", Signal{CallID: id, Kind: KindBye})
	select {
	case err := <-failed:
		if !errors.Is(err, ErrClosedByRemote) {
			t.Fatalf("err = %v", err)
		}
	default:
		t.Fatal("remote bye did not fail the call")
	}
	if len(sig.kind(KindBye)) != 0 {
		t.Fatal("answered a bye with a bye")
	}
}

func TestUnavailableFailsCalls(t *testing.T) {
	d := NewDialer(DefaultWebRTCConfig(), &recordingSignaler{})
	failed := make(chan error, 1)
	if _, err := d.Dial(context.Background(), "b", audioOnly(t), mesh.Observer{
		Failed: func(err error) { failed <- err },
	}); err != nil {
		t.Fatal(err)
	}
	d.Unavailable(context.Background(), "b")
	select {
	case err := <-failed:
		if !errors.Is(err, domain.ErrPeerConnection) {
			t.Fatalf("err = %v", err)
		}
	default:
		t.Fatal("call to unreachable remote still up")
	}
}
