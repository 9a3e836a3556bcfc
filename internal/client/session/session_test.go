package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Spaces/internal/adapters/rtc"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/protocol"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   []protocol.Envelope
	in     chan protocol.Envelope
	closed bool
}

func newConn() *fakeConn {
	return &fakeConn{in: make(chan protocol.Envelope, 16)}
}

func (c *fakeConn) Send(tag string, payload any) error {
	frame, err := protocol.Encode(tag, payload)
	if err != nil {
		return err
	}
	env, err := protocol.Decode(frame)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, env)
	return nil
}

func (c *fakeConn) Incoming() <-chan protocol.Envelope { return c.in }

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) tagged(tag string) []protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.Envelope
	for _, e := range c.sent {
		if e.Type == tag {
			out = append(out, e)
		}
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func envelope(t *testing.T, tag string, payload any) protocol.Envelope {
	t.Helper()
	frame, err := protocol.Encode(tag, payload)
	if err != nil {
		t.Fatal(err)
	}
	env, err := protocol.Decode(frame)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

var snapshot = protocol.RosterSnapshot{
	Self:                    "a",
	RoomID:                  "public",
	RoomName:                "public",
	CurrentParticipantCount: 2,
	Participants: []protocol.ParticipantView{
		{SessionID: "a", DisplayName: "alice", X: 705, Y: 500, AnimationState: domain.DefaultAnimation},
		{SessionID: "b", DisplayName: "bob", X: 710, Y: 505, AnimationState: domain.DefaultAnimation},
	},
}

type running struct {
	s      *Session
	conn   *fakeConn
	tick   chan time.Time
	events chan protocol.Envelope
	done   chan error
}

// start runs a session without capture devices, so links stay deferred.
func start(t *testing.T) running {
	t.Helper()
	r := running{
		conn:   newConn(),
		tick:   make(chan time.Time),
		events: make(chan protocol.Envelope, 16),
		done:   make(chan error, 1),
	}
	r.s = newSession(Config{
		Media:   rtc.Capture{},
		OnEvent: func(env protocol.Envelope) { r.events <- env },
	}, r.conn, snapshot)
	r.s.tick = r.tick
	go func() { r.done <- r.s.Run(context.Background()) }()
	t.Cleanup(func() {
		r.s.Leave()
		<-r.done
	})
	return r
}

func (r running) push(t *testing.T, tag string, payload any) protocol.Envelope {
	t.Helper()
	r.conn.in <- envelope(t, tag, payload)
	select {
	case env := <-r.events:
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("%s not handled", tag)
		return protocol.Envelope{}
	}
}

func TestHandshake(t *testing.T) {
	c := newConn()
	c.in <- envelope(t, protocol.TagPong, nil)
	c.in <- envelope(t, protocol.TagRosterSnapshot, snapshot)
	snap, err := handshake(context.Background(), c, protocol.JoinRequest{DisplayName: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if snap.Self != "a" || len(snap.Participants) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if joins := c.tagged(protocol.TagJoin); len(joins) != 1 {
		t.Fatalf("join frames = %d", len(joins))
	}
}

func TestHandshakeWrongPassword(t *testing.T) {
	c := newConn()
	c.in <- envelope(t, protocol.TagError, protocol.ErrorPayload(domain.ErrWrongPassword))
	_, err := handshake(context.Background(), c, protocol.JoinRequest{RoomID: "r1", Password: "nope"})
	if !errors.Is(err, domain.ErrWrongPassword) || !errors.Is(err, ErrJoinRefused) {
		t.Fatalf("err = %v", err)
	}
}

func TestHandshakeSocketClosed(t *testing.T) {
	c := newConn()
	close(c.in)
	if _, err := handshake(context.Background(), c, protocol.JoinRequest{}); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("err = %v", err)
	}
}

func TestRosterEventsDriveMirrorAndMesh(t *testing.T) {
	r := start(t)

	r.push(t, protocol.TagParticipantJoined, protocol.ParticipantView{SessionID: "c", DisplayName: "carol"})
	r.push(t, protocol.TagPositionChanged, protocol.PositionChanged{SessionID: "c", X: 1, Y: 2, AnimationState: "walk"})
	r.push(t, protocol.TagPositionChanged, protocol.PositionChanged{SessionID: "ghost", X: 9, Y: 9})
	r.push(t, protocol.TagParticipantLeft, protocol.ParticipantView{SessionID: "b", DisplayName: "bob"})

	m := r.s.Mirror()
	if m.Count() != 2 {
		t.Fatalf("roster = %+v", m.Participants())
	}
	if _, ok := m.Get("ghost"); ok {
		t.Fatal("mirror made up a participant")
	}
	if c, _ := m.Get("c"); c.Position != (domain.Position{X: 1, Y: 2}) || c.Animation != "walk" {
		t.Fatalf("c = %+v", c)
	}

	if l, ok := r.s.mesh.Link("c"); !ok || l.State != domain.LinkAbsent {
		t.Fatalf("c link = %+v, %v", l, ok)
	}
	if l, _ := r.s.mesh.Link("b"); l.State != domain.LinkClosed {
		t.Fatalf("b link = %+v", l)
	}
	if _, ok := r.s.mesh.Link("a"); ok {
		t.Fatal("link to self")
	}
}

func TestRemoteMediaState(t *testing.T) {
	r := start(t)
	r.push(t, protocol.TagMediaStateChange, protocol.MediaStateChange{PeerID: "b", VideoEnabled: false, AudioEnabled: true})
	l, _ := r.s.mesh.Link("b")
	if l.VideoEnabled || !l.AudioEnabled {
		t.Fatalf("b link = %+v", l)
	}
}

func TestPositionSentOnlyOnChange(t *testing.T) {
	r := start(t)

	r.s.Move(10, 20, "walk")
	r.tick <- time.Now()
	r.tick <- time.Now()
	r.tick <- time.Now()
	if n := len(r.conn.tagged(protocol.TagPositionUpdate)); n != 1 {
		t.Fatalf("position frames = %d, want 1", n)
	}

	r.s.Move(10, 20, "walk")
	r.tick <- time.Now()
	r.tick <- time.Now()
	if n := len(r.conn.tagged(protocol.TagPositionUpdate)); n != 1 {
		t.Fatalf("unchanged position was resent")
	}

	r.s.Move(11, 20, "")
	r.tick <- time.Now()
	r.tick <- time.Now()
	frames := r.conn.tagged(protocol.TagPositionUpdate)
	if len(frames) != 2 {
		t.Fatalf("position frames = %d, want 2", len(frames))
	}
	var upd protocol.PositionUpdate
	if err := json.Unmarshal(frames[1].Payload, &upd); err != nil {
		t.Fatal(err)
	}
	if upd.X != 11 || upd.AnimationState != "walk" {
		t.Fatalf("update = %+v", upd)
	}
	if me, _ := r.s.Mirror().Get("a"); me.Position.X != 11 {
		t.Fatalf("mirror self = %+v", me)
	}
}

func TestOfferWithoutMediaIsRefusedOverRelay(t *testing.T) {
	r := start(t)

	raw, _ := json.Marshal(rtc.Signal{CallID: "c1", Kind: rtc.KindOffer, SDP: "v=0"})
	r.conn.in <- envelope(t, protocol.TagSignalRelay, protocol.SignalRelay{From: "b", Signal: raw})

	eventually(t, "bye", func() bool { return len(r.conn.tagged(protocol.TagSignalRelay)) == 1 })
	var sr protocol.SignalRelay
	_ = json.Unmarshal(r.conn.tagged(protocol.TagSignalRelay)[0].Payload, &sr)
	sig, err := rtc.DecodeSignal(sr.Signal)
	if err != nil {
		t.Fatal(err)
	}
	if sr.Target != "b" || sig.Kind != rtc.KindBye || sig.CallID != "c1" {
		t.Fatalf("relay = %+v, signal = %+v", sr, sig)
	}
}

func TestLocalToggleBroadcasts(t *testing.T) {
	r := start(t)
	r.s.SetVideo(false)
	frames := r.conn.tagged(protocol.TagMediaStateChange)
	if len(frames) != 1 {
		t.Fatalf("media frames = %d", len(frames))
	}
	var m protocol.MediaStateChange
	_ = json.Unmarshal(frames[0].Payload, &m)
	if m.VideoEnabled || !m.AudioEnabled {
		t.Fatalf("media = %+v", m)
	}
}

func TestTaskSyncStored(t *testing.T) {
	r := start(t)
	r.push(t, protocol.TagTaskSync, protocol.TaskSync{Tasks: []protocol.TaskView{{ID: "t1", Text: "water plants"}}})
	tasks := r.s.Tasks()
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Fatalf("tasks = %+v", tasks)
	}
}

func TestDisconnectEndsRun(t *testing.T) {
	r := start(t)
	close(r.conn.in)
	select {
	case err := <-r.done:
		if !errors.Is(err, ErrDisconnected) {
			t.Fatalf("err = %v", err)
		}
		r.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("run did not end")
	}
	if !r.conn.isClosed() {
		t.Fatal("socket left open")
	}
}

func TestLeaveEndsRun(t *testing.T) {
	r := start(t)
	r.s.Leave()
	select {
	case err := <-r.done:
		if err != nil {
			t.Fatalf("err = %v", err)
		}
		r.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("run did not end")
	}
	if len(r.conn.tagged(protocol.TagLeave)) != 1 {
		t.Fatal("leave not sent")
	}
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		base, path, want string
		wantErr          bool
	}{
		{base: "http://localhost:8080", path: "/api/ws", want: "ws://localhost:8080/api/ws"},
		{base: "https://spaces.example/", path: "/api/ws", want: "wss://spaces.example/api/ws"},
		{base: "ftp://x", path: "/api/ws", wantErr: true},
		{base: "http://", path: "/api/ws", wantErr: true},
	}
	for _, tt := range tests {
		got, err := socketURL(tt.base, tt.path, nil)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("socketURL(%q) = %q, %v", tt.base, got, err)
		}
	}
}
