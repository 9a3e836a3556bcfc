// Package session holds the authoritative room state. Each room is an actor
// that applies joins, leaves and updates one at a time and reports every
// change as an Event to a Sink.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/domain"
)

const (
	defaultDirectoryTimeout = 3 * time.Second
	defaultRoomName         = "Untitled room"
	publicRoomName          = "Lobby"
)

type Options struct {
	DirectoryTimeout time.Duration
	Now              func() time.Time
	NewID            func() string
}

// Target says which room a join is for. Create wins over RoomID; an empty
// RoomID means the public lobby.
type Target struct {
	RoomID domain.RoomID
	Create *domain.RoomConfig
}

type Registry struct {
	ctx   context.Context
	store core.DirectoryStore
	sink  Sink
	opts  Options

	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room

	wg  sync.WaitGroup
	log zerolog.Logger
}

// NewRegistry returns a registry whose rooms live until ctx is done.
func NewRegistry(ctx context.Context, store core.DirectoryStore, sink Sink, opts Options) *Registry {
	if opts.DirectoryTimeout <= 0 {
		opts.DirectoryTimeout = defaultDirectoryTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Registry{
		ctx:   ctx,
		store: store,
		sink:  sink,
		opts:  opts,
		rooms: make(map[domain.RoomID]*Room),
		log:   log.With().Str("module", "app.session").Logger(),
	}
}

// CreateRoom starts a new room. Private rooms are written to the directory
// first; when that write fails no room is created.
func (g *Registry) CreateRoom(ctx context.Context, cfg domain.RoomConfig) (*Room, error) {
	meta := domain.RoomMeta{
		ID:          domain.RoomID(g.opts.NewID()),
		Name:        roomName(cfg.Name),
		Description: strings.TrimSpace(cfg.Description),
		Password:    cfg.Password,
		IsPrivate:   cfg.IsPrivate,
	}
	if meta.IsPrivate {
		wctx, cancel := context.WithTimeout(ctx, g.opts.DirectoryTimeout)
		err := g.store.Create(wctx, domain.RecordOf(meta))
		cancel()
		if err != nil {
			g.log.Error().Err(err).Str("room", string(meta.ID)).Msg("directory create failed")
			return nil, fmt.Errorf("create room %s: %w: %w", meta.ID, domain.ErrDirectoryWrite, err)
		}
	}

	room := g.launch(meta)
	g.mu.Lock()
	g.rooms[meta.ID] = room
	g.mu.Unlock()
	return room, nil
}

// Public returns the lobby, starting a fresh one when none is live.
func (g *Registry) Public() *Room {
	g.mu.RLock()
	room, ok := g.rooms[domain.PublicRoomID]
	g.mu.RUnlock()
	if ok {
		return room
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if room, ok = g.rooms[domain.PublicRoomID]; ok {
		return room
	}
	room = g.launch(domain.RoomMeta{ID: domain.PublicRoomID, Name: publicRoomName})
	g.rooms[domain.PublicRoomID] = room
	return room
}

func (g *Registry) Room(id domain.RoomID) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[id]
	return room, ok
}

// Resolve finds or creates the room named by t. Joining a private room by id
// also checks that its directory record still exists.
func (g *Registry) Resolve(ctx context.Context, t Target) (*Room, error) {
	if t.Create != nil {
		return g.CreateRoom(ctx, *t.Create)
	}
	if t.RoomID == "" || t.RoomID == domain.PublicRoomID {
		return g.Public(), nil
	}

	room, ok := g.Room(t.RoomID)
	if !ok {
		return nil, fmt.Errorf("room %s: %w", t.RoomID, domain.ErrRoomNotFound)
	}
	if room.IsPrivate() {
		rctx, cancel := context.WithTimeout(ctx, g.opts.DirectoryTimeout)
		_, err := g.store.Get(rctx, t.RoomID)
		cancel()
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			return nil, err
		case err != nil:
			g.log.Warn().Err(err).Str("room", string(t.RoomID)).Msg("directory lookup failed, admitting on live state")
		}
	}
	return room, nil
}

// Join resolves t and joins sid to it. A room that is disposed between
// lookup and join is replaced by a fresh one for the lobby and reported as
// not found otherwise.
func (g *Registry) Join(ctx context.Context, t Target, sid domain.SessionID, opts domain.JoinOptions) (*Room, domain.Participant, error) {
	for attempt := 0; ; attempt++ {
		room, err := g.Resolve(ctx, t)
		if err != nil {
			return nil, domain.Participant{}, err
		}
		p, err := room.Join(ctx, sid, opts)
		if !errors.Is(err, ErrRoomClosed) {
			return room, p, err
		}
		if room.ID() != domain.PublicRoomID || attempt > 0 {
			return nil, domain.Participant{}, fmt.Errorf("room %s: %w", room.ID(), domain.ErrRoomNotFound)
		}
		g.log.Debug().Str("sid", string(sid)).Msg("lobby closed during join, retrying")
		t = Target{}
	}
}

// List returns live rooms ordered by id.
func (g *Registry) List() []core.RoomInfo {
	g.mu.RLock()
	out := make([]core.RoomInfo, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r.Info())
	}
	g.mu.RUnlock()
	slices.SortFunc(out, func(a, b core.RoomInfo) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out
}

// Wait blocks until every room goroutine and its directory writes finished.
func (g *Registry) Wait() {
	g.wg.Wait()
}

func (g *Registry) launch(meta domain.RoomMeta) *Room {
	logger := g.log.With().Str("room", string(meta.ID)).Logger()
	room := &Room{
		meta:         meta,
		inbox:        make(chan func()),
		done:         make(chan struct{}),
		participants: make(map[domain.SessionID]domain.Participant),
		sink:         g.sink,
		onEmpty:      g.remove,
		now:          g.opts.Now,
		newID:        g.opts.NewID,
		log:          logger,
	}
	if meta.IsPrivate {
		room.dir = newDirectorySync(g.store, meta.ID, g.opts.DirectoryTimeout, logger)
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		room.run(g.ctx)
		room.dir.wait()
	}()
	return room
}

// remove drops room from the index unless a newer room took its id.
func (g *Registry) remove(room *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.rooms[room.ID()]; ok && cur == room {
		delete(g.rooms, room.ID())
	}
}

func roomName(name domain.RoomName) domain.RoomName {
	s := strings.TrimSpace(string(name))
	if s == "" {
		return defaultRoomName
	}
	if rs := []rune(s); len(rs) > domain.MaxDisplayNameLen {
		s = string(rs[:domain.MaxDisplayNameLen])
	}
	return domain.RoomName(s)
}
