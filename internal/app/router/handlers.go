package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/dkeye/Spaces/internal/app/session"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/protocol"
)

type roomHandler func(ctx context.Context, c *Client, room *session.Room, env protocol.Envelope) error

func (r *Router) dispatchTable() map[string]Handler {
	return map[string]Handler{
		protocol.TagJoin:               r.handleJoin,
		protocol.TagLeave:              r.handleLeave,
		protocol.TagPing:               r.handlePing,
		protocol.TagPositionUpdate:     inRoom(r.handlePosition),
		protocol.TagChatMessage:        inRoom(r.handleChat),
		protocol.TagSystemAnnouncement: inRoom(r.handleAnnouncement),
		protocol.TagMediaStateChange:   inRoom(r.handleMediaState),
		protocol.TagSignalRelay:        inRoom(r.handleRelay),
		protocol.TagTaskCreate:         inRoom(r.handleTaskCreate),
		protocol.TagTaskToggle:         inRoom(r.handleTaskToggle),
		protocol.TagTaskDelete:         inRoom(r.handleTaskDelete),
		protocol.TagTaskSync:           inRoom(r.handleTaskSync),
	}
}

func inRoom(h roomHandler) Handler {
	return func(ctx context.Context, c *Client, env protocol.Envelope) error {
		room := c.Room()
		if room == nil {
			return domain.ErrNotJoined
		}
		return h(ctx, c, room, env)
	}
}

func decode(env protocol.Envelope, v any) error {
	if err := protocol.DecodePayload(env, v); err != nil {
		return fmt.Errorf("%w: %w", protocol.ErrBadPayload, err)
	}
	return nil
}

func (r *Router) handleJoin(ctx context.Context, c *Client, env protocol.Envelope) error {
	if room := c.Room(); room != nil {
		return fmt.Errorf("already in %s: %w", room.ID(), domain.ErrDuplicateSession)
	}
	var req protocol.JoinRequest
	if err := decode(env, &req); err != nil {
		return err
	}

	target := session.Target{RoomID: req.RoomID}
	if req.Create != nil {
		target.Create = &domain.RoomConfig{
			Name:        domain.RoomName(req.Create.RoomName),
			Description: req.Create.RoomDescription,
			Password:    req.Create.RoomPassword,
			IsPrivate:   req.Create.IsPrivate,
		}
	}
	opts := domain.JoinOptions{
		DisplayName: req.DisplayName,
		AvatarKind:  req.AvatarKind,
		Password:    req.Password,
	}
	if target.Create != nil {
		opts.Password = target.Create.Password
	}

	room, p, err := r.registry.Join(ctx, target, c.SID, opts)
	if err != nil {
		return err
	}
	c.setRoom(room)
	r.attach(room.ID(), c)
	r.log.Info().Str("sid", string(c.SID)).Str("room", string(room.ID())).Str("name", p.DisplayName).Msg("join")
	return nil
}

func (r *Router) handleLeave(ctx context.Context, c *Client, _ protocol.Envelope) error {
	room := c.Room()
	if room == nil {
		return domain.ErrNotJoined
	}
	c.setRoom(nil)
	r.detach(room.ID(), c.SID)
	return room.Leave(ctx, c.SID)
}

func (r *Router) handlePing(_ context.Context, c *Client, _ protocol.Envelope) error {
	r.send(c, "", protocol.TagPong, nil)
	return nil
}

func (r *Router) handlePosition(ctx context.Context, c *Client, room *session.Room, env protocol.Envelope) error {
	var upd protocol.PositionUpdate
	if err := decode(env, &upd); err != nil {
		return err
	}
	return room.ApplyUpdate(ctx, c.SID, session.Update{
		Target:    upd.SessionID,
		Position:  domain.Position{X: upd.X, Y: upd.Y},
		Animation: upd.AnimationState,
	})
}

func (r *Router) handleChat(ctx context.Context, c *Client, room *session.Room, env protocol.Envelope) error {
	var msg protocol.ChatMessage
	if err := decode(env, &msg); err != nil {
		return err
	}
	return room.Chat(ctx, c.SID, msg.Text)
}

func (r *Router) handleAnnouncement(ctx context.Context, c *Client, room *session.Room, env protocol.Envelope) error {
	var msg protocol.SystemAnnouncement
	if err := decode(env, &msg); err != nil {
		return err
	}
	return room.Announce(ctx, c.SID, msg.Text)
}

func (r *Router) handleMediaState(ctx context.Context, c *Client, room *session.Room, env protocol.Envelope) error {
	var msg protocol.MediaStateChange
	if err := decode(env, &msg); err != nil {
		return err
	}
	return room.MediaState(ctx, c.SID, msg.VideoEnabled, msg.AudioEnabled)
}

func (r *Router) handleRelay(ctx context.Context, c *Client, room *session.Room, env protocol.Envelope) error {
	var msg protocol.SignalRelay
	if err := decode(env, &msg); err != nil {
		return err
	}
	if msg.Target == "" {
		return fmt.Errorf("relay without target: %w", domain.ErrUnknownRelayTarget)
	}
	return room.Relay(ctx, c.SID, msg.Target, msg.Signal)
}

func (r *Router) handleTaskCreate(ctx context.Context, c *Client, room *session.Room, env protocol.Envelope) error {
	var msg protocol.TaskCreate
	if err := decode(env, &msg); err != nil {
		return err
	}
	_, err := room.CreateTask(ctx, c.SID, msg.Text)
	return err
}

func (r *Router) handleTaskToggle(ctx context.Context, c *Client, room *session.Room, env protocol.Envelope) error {
	var msg protocol.TaskRef
	if err := decode(env, &msg); err != nil {
		return err
	}
	_, err := room.ToggleTask(ctx, c.SID, msg.ID)
	return err
}

func (r *Router) handleTaskDelete(ctx context.Context, c *Client, room *session.Room, env protocol.Envelope) error {
	var msg protocol.TaskRef
	if err := decode(env, &msg); err != nil {
		return err
	}
	return room.DeleteTask(ctx, c.SID, msg.ID)
}

func (r *Router) handleTaskSync(ctx context.Context, c *Client, room *session.Room, _ protocol.Envelope) error {
	return room.SyncTasks(ctx, c.SID)
}

// Announce sends a server notice to every attached client of every room.
func (r *Router) Announce(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	frame, err := protocol.Encode(protocol.TagSystemAnnouncement, protocol.SystemAnnouncement{Text: text})
	if err != nil {
		return
	}
	r.mu.RLock()
	rooms := make([]domain.RoomID, 0, len(r.rooms))
	for id := range r.rooms {
		rooms = append(rooms, id)
	}
	r.mu.RUnlock()
	for _, id := range rooms {
		r.ToAll(id, protocol.TagSystemAnnouncement, frame)
	}
}
