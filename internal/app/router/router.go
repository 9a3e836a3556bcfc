// Package router connects client sockets to room actors: inbound envelopes go
// through a dispatch table, outbound room events are fanned out to the
// recipients each event names.
package router

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Spaces/internal/app/session"
	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/protocol"
)

// Client is the router's handle of one connected socket.
type Client struct {
	SID   domain.SessionID
	Conn  core.SignalConnection
	Token string

	mu   sync.Mutex
	room *session.Room
}

func (c *Client) Room() *session.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) setRoom(room *session.Room) {
	c.mu.Lock()
	c.room = room
	c.mu.Unlock()
}

type Handler func(ctx context.Context, c *Client, env protocol.Envelope) error

type Router struct {
	registry *session.Registry
	policy   Policy
	handlers map[string]Handler

	mu      sync.RWMutex
	clients map[domain.SessionID]*Client
	rooms   map[domain.RoomID]map[domain.SessionID]*Client

	log zerolog.Logger
}

func New(ctx context.Context, store core.DirectoryStore, policy Policy, opts session.Options) *Router {
	if policy == nil {
		policy = SimplePolicy{}
	}
	r := &Router{
		policy:  policy,
		clients: make(map[domain.SessionID]*Client),
		rooms:   make(map[domain.RoomID]map[domain.SessionID]*Client),
		log:     log.With().Str("module", "app.router").Logger(),
	}
	r.registry = session.NewRegistry(ctx, store, r, opts)
	r.handlers = r.dispatchTable()
	return r
}

func (r *Router) Registry() *session.Registry { return r.registry }

// Connect registers a socket. sid must be unique among live connections.
func (r *Router) Connect(sid domain.SessionID, conn core.SignalConnection, token string) *Client {
	c := &Client{SID: sid, Conn: conn, Token: token}
	r.mu.Lock()
	r.clients[sid] = c
	r.mu.Unlock()
	r.log.Debug().Str("sid", string(sid)).Str("client_token", token).Msg("client connected")
	return c
}

// Disconnect leaves the client's room, if any, and forgets the client.
func (r *Router) Disconnect(ctx context.Context, c *Client) {
	if room := c.Room(); room != nil {
		if err := room.Leave(ctx, c.SID); err != nil && !errors.Is(err, session.ErrRoomClosed) {
			r.log.Warn().Err(err).Str("sid", string(c.SID)).Msg("leave on disconnect")
		}
		r.detach(room.ID(), c.SID)
		c.setRoom(nil)
	}
	r.mu.Lock()
	delete(r.clients, c.SID)
	r.mu.Unlock()
	r.log.Debug().Str("sid", string(c.SID)).Msg("client disconnected")
}

// Dispatch routes one inbound envelope. Validation errors are answered to
// the sender only.
func (r *Router) Dispatch(ctx context.Context, c *Client, env protocol.Envelope) {
	h, ok := r.handlers[env.Type]
	if !ok {
		r.log.Warn().Str("sid", string(c.SID)).Str("type", env.Type).Msg("unknown message type")
		return
	}
	err := h(ctx, c, env)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUnknownRelayTarget):
		// dropped, the sender is not told
	default:
		r.log.Debug().Err(err).Str("sid", string(c.SID)).Str("type", env.Type).Msg("request rejected")
		r.ReplyError(c, err)
	}
}

// ReplyError sends an error envelope to c only.
func (r *Router) ReplyError(c *Client, err error) {
	r.send(c, "", protocol.TagError, protocol.ErrorPayload(err))
}

// Deliver implements session.Sink.
func (r *Router) Deliver(evt session.Event) {
	frame, err := protocol.Encode(evt.Tag, evt.Payload)
	if err != nil {
		r.log.Error().Err(err).Str("room", string(evt.Room)).Str("type", evt.Tag).Msg("encode event")
		return
	}
	for _, sid := range evt.To {
		r.ToOne(evt.Room, sid, evt.Tag, frame)
	}
}

// ToAll sends frame to every client attached to room.
func (r *Router) ToAll(room domain.RoomID, tag string, frame core.Frame) {
	r.ToAllExcept(room, "", tag, frame)
}

// ToAllExcept sends frame to every client attached to room but except.
func (r *Router) ToAllExcept(room domain.RoomID, except domain.SessionID, tag string, frame core.Frame) {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.rooms[room]))
	for sid, c := range r.rooms[room] {
		if sid != except {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()
	for _, c := range targets {
		r.trySend(room, c, tag, frame)
	}
}

// ToOne sends frame to a single session. An unknown target is a no-op.
func (r *Router) ToOne(room domain.RoomID, sid domain.SessionID, tag string, frame core.Frame) {
	r.mu.RLock()
	c, ok := r.clients[sid]
	r.mu.RUnlock()
	if !ok {
		r.log.Warn().Str("room", string(room)).Str("sid", string(sid)).Str("type", tag).Msg("target not connected")
		return
	}
	r.trySend(room, c, tag, frame)
}

func (r *Router) send(c *Client, room domain.RoomID, tag string, payload any) {
	frame, err := protocol.Encode(tag, payload)
	if err != nil {
		r.log.Error().Err(err).Str("type", tag).Msg("encode reply")
		return
	}
	r.trySend(room, c, tag, frame)
}

func (r *Router) trySend(room domain.RoomID, c *Client, tag string, frame core.Frame) {
	err := c.Conn.TrySend(frame)
	if err == nil {
		return
	}
	if !errors.Is(err, core.ErrBackpressure) {
		r.log.Debug().Err(err).Str("sid", string(c.SID)).Msg("send to closed connection")
		return
	}
	action := r.policy.OnBackPressure(room, c.SID, tag)
	r.log.Warn().Str("room", string(room)).Str("sid", string(c.SID)).Str("type", tag).Stringer("action", action).Msg("backpressure")
	if action == KickMember {
		c.Conn.Close()
	}
}

func (r *Router) attach(room domain.RoomID, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.rooms[room]
	if !ok {
		set = make(map[domain.SessionID]*Client)
		r.rooms[room] = set
	}
	set[c.SID] = c
}

func (r *Router) detach(room domain.RoomID, sid domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.rooms[room]
	delete(set, sid)
	if len(set) == 0 {
		delete(r.rooms, room)
	}
}
