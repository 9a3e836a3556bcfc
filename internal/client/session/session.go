// Package session runs one client membership: the session socket, the
// roster mirror, the peer mesh and the position ticker.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Spaces/internal/adapters/rtc"
	"github.com/dkeye/Spaces/internal/client/mesh"
	"github.com/dkeye/Spaces/internal/client/mirror"
	"github.com/dkeye/Spaces/internal/client/signaling"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/protocol"
)

// PositionInterval is how often a changed local position is sent.
const PositionInterval = 33 * time.Millisecond

const (
	SignalingAuto   = "auto"
	SignalingBroker = "broker"
	SignalingRelay  = "relay"
)

var (
	ErrDisconnected = errors.New("session socket closed")
	ErrJoinRefused  = errors.New("join refused")
)

type Config struct {
	ServerURL  string
	Header     http.Header
	Join       protocol.JoinRequest
	ICEServers []string
	Signaling  string
	Media      mesh.MediaSource
	Renderer   mesh.Renderer
	// OnEvent sees every server envelope after the mirror and mesh did.
	OnEvent func(protocol.Envelope)
}

// conn is the session socket as the client uses it.
type conn interface {
	Send(tag string, payload any) error
	Incoming() <-chan protocol.Envelope
	Close()
}

type Session struct {
	cfg    Config
	conn   conn
	mirror *mirror.Mirror
	dialer *rtc.Dialer
	mesh   *mesh.Manager
	relay  *rtc.RelaySignaler
	broker *rtc.BrokerSignaler

	ctx    context.Context
	cancel context.CancelFunc
	tick   <-chan time.Time

	mu    sync.Mutex
	pos   domain.Position
	anim  string
	dirty bool
	tasks []protocol.TaskView
	path  string

	leave sync.Once
	log   zerolog.Logger
}

// Join dials the server, joins the requested room and connects the
// signaling broker. A refused join wraps the matching domain error.
func Join(ctx context.Context, cfg Config) (*Session, error) {
	wsURL, err := socketURL(cfg.ServerURL, "/api/ws", nil)
	if err != nil {
		return nil, err
	}
	c, err := signaling.Dial(ctx, wsURL, cfg.Header)
	if err != nil {
		return nil, err
	}
	snap, err := handshake(ctx, c, cfg.Join)
	if err != nil {
		c.Close()
		return nil, err
	}

	s := newSession(cfg, c, snap)
	if cfg.Signaling == SignalingRelay {
		return s, nil
	}
	brokerURL, err := socketURL(cfg.ServerURL, "/api/ws/broker", url.Values{"id": {string(snap.Self)}})
	if err == nil {
		var bc *signaling.Client
		bc, err = signaling.Dial(ctx, brokerURL, cfg.Header)
		if err == nil {
			s.useBroker(rtc.NewBrokerSignaler(bc))
			return s, nil
		}
	}
	if cfg.Signaling == SignalingBroker {
		s.Leave()
		return nil, fmt.Errorf("signaling broker: %w", err)
	}
	s.log.Warn().Err(err).Msg("broker unreachable, signaling over relay")
	return s, nil
}

func handshake(ctx context.Context, c conn, req protocol.JoinRequest) (protocol.RosterSnapshot, error) {
	if err := c.Send(protocol.TagJoin, req); err != nil {
		return protocol.RosterSnapshot{}, err
	}
	for {
		select {
		case <-ctx.Done():
			return protocol.RosterSnapshot{}, ctx.Err()
		case env, ok := <-c.Incoming():
			if !ok {
				return protocol.RosterSnapshot{}, ErrDisconnected
			}
			switch env.Type {
			case protocol.TagRosterSnapshot:
				var snap protocol.RosterSnapshot
				if err := protocol.DecodePayload(env, &snap); err != nil {
					return protocol.RosterSnapshot{}, err
				}
				return snap, nil
			case protocol.TagError:
				var e protocol.Error
				if err := protocol.DecodePayload(env, &e); err != nil {
					return protocol.RosterSnapshot{}, err
				}
				if sentinel := protocol.ErrorOf(e.Code); sentinel != nil {
					return protocol.RosterSnapshot{}, fmt.Errorf("%w: %w", ErrJoinRefused, sentinel)
				}
				return protocol.RosterSnapshot{}, fmt.Errorf("%w: %s: %s", ErrJoinRefused, e.Code, e.Message)
			}
		}
	}
}

func newSession(cfg Config, c conn, snap protocol.RosterSnapshot) *Session {
	if cfg.Media == nil {
		cfg.Media = rtc.Capture{Video: true, Audio: true}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:    cfg,
		conn:   c,
		mirror: mirror.New(),
		relay:  rtc.NewRelaySignaler(c),
		ctx:    ctx,
		cancel: cancel,
		path:   SignalingRelay,
		log:    log.With().Str("module", "client.session").Str("sid", string(snap.Self)).Str("room", string(snap.RoomID)).Logger(),
	}
	s.mirror.Reset(snap)
	if me, ok := s.mirror.Get(snap.Self); ok {
		s.pos, s.anim = me.Position, me.Animation
	}

	s.dialer = rtc.NewDialer(rtc.DefaultWebRTCConfig(cfg.ICEServers...), s.relay)
	s.mesh = mesh.New(ctx, mesh.Config{
		Self:        snap.Self,
		Dialer:      s.dialer,
		Media:       cfg.Media,
		Names:       s.mirror,
		Renderer:    cfg.Renderer,
		Broadcaster: s,
	})
	s.dialer.OnOffer(s.mesh.HandleOffer)
	return s
}

func (s *Session) useBroker(b *rtc.BrokerSignaler) {
	s.broker = b
	s.dialer.SetSignaler(b)
	s.mu.Lock()
	s.path = SignalingBroker
	s.mu.Unlock()
}

// Run consumes server events until the socket ends, ctx is done or Leave
// is called. It acquires local media in the background.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	for _, p := range s.mirror.Participants() {
		s.mesh.PeerJoined(p.SessionID)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loop(ctx) })
	g.Go(func() error { return s.positions(ctx) })
	g.Go(func() error {
		if err := s.mesh.AcquireMedia(ctx); err != nil {
			s.log.Warn().Err(err).Msg("joining without local media")
		}
		return nil
	})
	if s.broker != nil {
		g.Go(func() error {
			s.listenBroker(ctx)
			return nil
		})
	}
	err := g.Wait()
	s.Leave()
	return err
}

func (s *Session) listenBroker(ctx context.Context) {
	err := s.broker.Listen(ctx, s.dialer)
	if ctx.Err() != nil {
		return
	}
	s.log.Warn().Err(err).Msg("broker lost, signaling over relay")
	s.dialer.SetSignaler(s.relay)
	s.mu.Lock()
	s.path = SignalingRelay
	s.mu.Unlock()
}

func (s *Session) positions(ctx context.Context) error {
	tick := s.tick
	if tick == nil {
		t := time.NewTicker(PositionInterval)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			s.flushPosition()
		}
	}
}

func (s *Session) flushPosition() {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	s.dirty = false
	pos, anim := s.pos, s.anim
	s.mu.Unlock()

	if err := s.conn.Send(protocol.TagPositionUpdate, protocol.PositionUpdate{X: pos.X, Y: pos.Y, AnimationState: anim}); err != nil {
		s.log.Debug().Err(err).Msg("send position")
		return
	}
	s.mirror.MoveSelf(pos, anim)
}

// Leave closes every peer link, releases local media and the sockets.
func (s *Session) Leave() {
	s.leave.Do(func() {
		_ = s.conn.Send(protocol.TagLeave, nil)
		s.mesh.Close()
		s.dialer.CloseAll(context.Background())
		if s.broker != nil {
			s.broker.Close()
		}
		s.cancel()
		s.conn.Close()
		s.log.Info().Msg("left room")
	})
}

// socketURL turns an http(s) base URL into the ws(s) URL of path.
func socketURL(base, path string, q url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("server url %q: %w", base, err)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("server url %q: unsupported scheme %s", base, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url %q: missing host", base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()
	return u.String(), nil
}
