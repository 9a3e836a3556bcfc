package session

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/Spaces/internal/adapters/broker"
	"github.com/dkeye/Spaces/internal/adapters/directory"
	httpapi "github.com/dkeye/Spaces/internal/adapters/http"
	"github.com/dkeye/Spaces/internal/adapters/rtc"
	"github.com/dkeye/Spaces/internal/app/router"
	appsession "github.com/dkeye/Spaces/internal/app/session"
	"github.com/dkeye/Spaces/internal/config"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/protocol"
)

func server(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &config.Config{
		Mode:       "test",
		StaticPath: t.TempDir(),
		Secret:     "test-secret",
		PingPeriod: time.Minute,
		SendBuffer: 64,
		RateLimit:  config.RateLimit{Messages: 10, Interval: time.Second},
		Directory:  config.Directory{Timeout: time.Second},
	}
	store := directory.NewMemoryStore()
	rt := router.New(ctx, store, router.SimplePolicy{}, appsession.Options{})
	hub := broker.NewHub()
	go hub.Run(ctx)
	srv := httptest.NewServer(httpapi.SetupRouter(ctx, cfg, rt, hub, store))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		rt.Registry().Wait()
	})
	return srv.URL
}

type member struct {
	s      *Session
	events chan protocol.Envelope
}

func joinAs(t *testing.T, url string, req protocol.JoinRequest) member {
	t.Helper()
	m := member{events: make(chan protocol.Envelope, 64)}
	s, err := Join(context.Background(), Config{
		ServerURL: url,
		Join:      req,
		Media:     rtc.Capture{},
		OnEvent:   func(env protocol.Envelope) { m.events <- env },
	})
	if err != nil {
		t.Fatal(err)
	}
	m.s = s
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(context.Background())
	}()
	t.Cleanup(func() {
		s.Leave()
		<-done
	})
	return m
}

func (m member) await(t *testing.T, tag string) protocol.Envelope {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case env := <-m.events:
			if env.Type == tag {
				return env
			}
		case <-timeout:
			t.Fatalf("no %s", tag)
		}
	}
}

func TestTwoClientsShareARoom(t *testing.T) {
	url := server(t)
	a := joinAs(t, url, protocol.JoinRequest{DisplayName: "alice"})
	if a.s.SignalingPath() != SignalingBroker {
		t.Fatalf("signaling = %s", a.s.SignalingPath())
	}
	b := joinAs(t, url, protocol.JoinRequest{DisplayName: "bob"})

	a.await(t, protocol.TagParticipantJoined)
	b.await(t, protocol.TagParticipantJoined)
	if a.s.Mirror().Count() != 2 || b.s.Mirror().Count() != 2 {
		t.Fatalf("counts a=%d b=%d", a.s.Mirror().Count(), b.s.Mirror().Count())
	}
	if name, _ := b.s.Mirror().DisplayName(a.s.Self()); name != "alice" {
		t.Fatalf("b sees a as %q", name)
	}

	if err := b.s.Chat("hello"); err != nil {
		t.Fatal(err)
	}
	var msg protocol.ChatMessage
	if err := protocol.DecodePayload(a.await(t, protocol.TagChatMessage), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Sender != b.s.Self() || msg.Name != "bob" || msg.Text != "hello" {
		t.Fatalf("chat = %+v", msg)
	}

	bobID := b.s.Self()
	b.s.Leave()
	a.await(t, protocol.TagParticipantLeft)
	if _, ok := a.s.Mirror().Get(bobID); ok {
		t.Fatal("bob still mirrored")
	}
	if l, _ := a.s.mesh.Link(bobID); l.State != domain.LinkClosed {
		t.Fatalf("link to bob = %+v", l)
	}
}

func TestJoinWrongPassword(t *testing.T) {
	url := server(t)
	host := joinAs(t, url, protocol.JoinRequest{
		DisplayName: "host",
		Create:      &protocol.CreateRoom{RoomName: "R1", RoomPassword: "pw1", IsPrivate: true},
	})
	room := host.s.Mirror().Room()
	if !room.IsPrivate {
		t.Fatalf("room = %+v", room)
	}

	_, err := Join(context.Background(), Config{
		ServerURL: url,
		Join:      protocol.JoinRequest{RoomID: room.ID, Password: "wrong"},
		Media:     rtc.Capture{},
		Signaling: SignalingRelay,
	})
	if !errors.Is(err, domain.ErrWrongPassword) {
		t.Fatalf("err = %v", err)
	}

	guest := joinAs(t, url, protocol.JoinRequest{RoomID: room.ID, Password: "pw1", DisplayName: "guest"})
	if guest.s.Mirror().Room().ID != room.ID || guest.s.Mirror().Count() != 2 {
		t.Fatalf("guest room = %+v", guest.s.Mirror().Room())
	}
}
