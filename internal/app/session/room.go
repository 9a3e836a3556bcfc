package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/protocol"
)

// ErrRoomClosed is returned for commands sent to a disposed room.
var ErrRoomClosed = errors.New("room closed")

// Update is an in-place change of a participant. An empty Target means the caller.
type Update struct {
	Target    domain.SessionID
	Position  domain.Position
	Animation string
}

// Room is the actor owning one room's state. Every exported method is
// executed on the room goroutine one at a time, in arrival order.
type Room struct {
	meta  domain.RoomMeta
	inbox chan func()
	done  chan struct{}
	count atomic.Int32

	// owned by run
	participants map[domain.SessionID]domain.Participant
	order        []domain.SessionID
	tasks        []domain.Task
	lastStamp    time.Time
	disposed     bool

	sink    Sink
	dir     *directorySync
	onEmpty func(*Room)
	now     func() time.Time
	newID   func() string
	log     zerolog.Logger
}

func (r *Room) ID() domain.RoomID { return r.meta.ID }
func (r *Room) Meta() domain.RoomMeta { return r.meta }
func (r *Room) IsPrivate() bool { return r.meta.IsPrivate }
func (r *Room) Count() int { return int(r.count.Load()) }
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) Info() core.RoomInfo {
	return core.RoomInfo{
		ID:               r.meta.ID,
		Name:             r.meta.Name,
		IsPrivate:        r.meta.IsPrivate,
		ParticipantCount: r.Count(),
	}
}

func (r *Room) run(ctx context.Context) {
	defer close(r.done)
	r.log.Info().Bool("private", r.meta.IsPrivate).Msg("room started")
	for {
		select {
		case cmd := <-r.inbox:
			cmd()
			if r.disposed {
				r.log.Info().Msg("room disposed")
				return
			}
		case <-ctx.Done():
			r.log.Info().Int("participants", len(r.participants)).Msg("room ctx done")
			r.dir.deleteAndClose()
			return
		}
	}
}

// do runs fn on the room goroutine and waits for it to finish.
func (r *Room) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn()
	}
	select {
	case r.inbox <- cmd:
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call is do for commands that produce a result and an error.
func call[T any](ctx context.Context, r *Room, fn func() (T, error)) (T, error) {
	var (
		out  T
		cerr error
	)
	if err := r.do(ctx, func() { out, cerr = fn() }); err != nil {
		var zero T
		return zero, err
	}
	return out, cerr
}

func (r *Room) Join(ctx context.Context, sid domain.SessionID, opts domain.JoinOptions) (domain.Participant, error) {
	return call(ctx, r, func() (domain.Participant, error) { return r.join(sid, opts) })
}

func (r *Room) Leave(ctx context.Context, sid domain.SessionID) error {
	_, err := call(ctx, r, func() (struct{}, error) { return struct{}{}, r.leave(sid) })
	return err
}

func (r *Room) ApplyUpdate(ctx context.Context, caller domain.SessionID, u Update) error {
	_, err := call(ctx, r, func() (struct{}, error) { return struct{}{}, r.applyUpdate(caller, u) })
	return err
}

func (r *Room) Chat(ctx context.Context, sid domain.SessionID, text string) error {
	_, err := call(ctx, r, func() (struct{}, error) { return struct{}{}, r.chat(sid, text) })
	return err
}

func (r *Room) Announce(ctx context.Context, sid domain.SessionID, text string) error {
	_, err := call(ctx, r, func() (struct{}, error) { return struct{}{}, r.announce(sid, text) })
	return err
}

func (r *Room) MediaState(ctx context.Context, sid domain.SessionID, video, audio bool) error {
	_, err := call(ctx, r, func() (struct{}, error) { return struct{}{}, r.mediaState(sid, video, audio) })
	return err
}

func (r *Room) Relay(ctx context.Context, from, target domain.SessionID, signal json.RawMessage) error {
	_, err := call(ctx, r, func() (struct{}, error) { return struct{}{}, r.relay(from, target, signal) })
	return err
}

func (r *Room) CreateTask(ctx context.Context, sid domain.SessionID, text string) (domain.Task, error) {
	return call(ctx, r, func() (domain.Task, error) { return r.createTask(sid, text) })
}

func (r *Room) ToggleTask(ctx context.Context, sid domain.SessionID, id domain.TaskID) (domain.Task, error) {
	return call(ctx, r, func() (domain.Task, error) { return r.toggleTask(sid, id) })
}

func (r *Room) DeleteTask(ctx context.Context, sid domain.SessionID, id domain.TaskID) error {
	_, err := call(ctx, r, func() (struct{}, error) { return struct{}{}, r.deleteTask(sid, id) })
	return err
}

// SyncTasks sends the current task list to sid only.
func (r *Room) SyncTasks(ctx context.Context, sid domain.SessionID) error {
	_, err := call(ctx, r, func() (struct{}, error) {
		if _, err := r.member(sid); err != nil {
			return struct{}{}, err
		}
		r.emit(protocol.TagTaskSync, r.taskSync(), toOne(sid))
		return struct{}{}, nil
	})
	return err
}

// Participants returns the roster in join order.
func (r *Room) Participants(ctx context.Context) ([]domain.Participant, error) {
	return call(ctx, r, func() ([]domain.Participant, error) {
		out := make([]domain.Participant, 0, len(r.order))
		for _, sid := range r.order {
			out = append(out, r.participants[sid])
		}
		return out, nil
	})
}

func (r *Room) Tasks(ctx context.Context) ([]domain.Task, error) {
	return call(ctx, r, func() ([]domain.Task, error) { return slices.Clone(r.tasks), nil })
}

func (r *Room) join(sid domain.SessionID, opts domain.JoinOptions) (domain.Participant, error) {
	if _, ok := r.participants[sid]; ok {
		r.log.Warn().Str("sid", string(sid)).Msg("duplicate join ignored")
		return domain.Participant{}, fmt.Errorf("join %s: %w", r.meta.ID, domain.ErrDuplicateSession)
	}
	if r.meta.IsPrivate && opts.Password != r.meta.Password {
		r.log.Info().Str("sid", string(sid)).Msg("wrong password")
		return domain.Participant{}, fmt.Errorf("join %s: %w", r.meta.ID, domain.ErrWrongPassword)
	}

	p := domain.NewParticipant(sid, opts, r.meta.IsPrivate)
	r.participants[sid] = p
	r.order = append(r.order, sid)
	r.count.Store(int32(len(r.order)))

	r.emit(protocol.TagRosterSnapshot, r.snapshot(sid), toOne(sid))
	for _, other := range r.order {
		if other != sid {
			r.emit(protocol.TagParticipantJoined, protocol.ViewOf(r.participants[other]), toOne(sid))
		}
	}
	r.emit(protocol.TagParticipantJoined, protocol.ViewOf(p), r.toAllExcept(sid))
	if len(r.tasks) > 0 {
		r.emit(protocol.TagTaskSync, r.taskSync(), toOne(sid))
	}
	r.dir.addPlayer(p)

	r.log.Info().Str("sid", string(sid)).Str("name", p.DisplayName).Int("count", len(r.order)).Msg("participant joined")
	return p, nil
}

func (r *Room) leave(sid domain.SessionID) error {
	p, ok := r.participants[sid]
	if !ok {
		return fmt.Errorf("leave %s: %w", r.meta.ID, domain.ErrNotJoined)
	}
	delete(r.participants, sid)
	r.order = slices.DeleteFunc(r.order, func(id domain.SessionID) bool { return id == sid })
	r.count.Store(int32(len(r.order)))

	r.emit(protocol.TagParticipantLeft, protocol.ViewOf(p), r.toAll())
	r.dir.removePlayer(sid)
	r.log.Info().Str("sid", string(sid)).Int("count", len(r.order)).Msg("participant left")

	if len(r.participants) == 0 {
		r.dispose()
	}
	return nil
}

func (r *Room) dispose() {
	r.disposed = true
	r.dir.deleteAndClose()
	if r.onEmpty != nil {
		r.onEmpty(r)
	}
}

func (r *Room) applyUpdate(caller domain.SessionID, u Update) error {
	if u.Target != "" && u.Target != caller {
		r.log.Warn().Str("sid", string(caller)).Str("target", string(u.Target)).Msg("forged update rejected")
		return fmt.Errorf("update %s: %w", u.Target, domain.ErrForgedIdentity)
	}
	p, err := r.member(caller)
	if err != nil {
		return err
	}
	p.Position = u.Position
	if u.Animation != "" {
		p.Animation = u.Animation
	}
	r.participants[caller] = p

	r.emit(protocol.TagPositionChanged, protocol.PositionChanged{
		SessionID:      caller,
		X:              p.Position.X,
		Y:              p.Position.Y,
		AnimationState: p.Animation,
	}, r.toAllExcept(caller))
	return nil
}

func (r *Room) chat(sid domain.SessionID, text string) error {
	p, err := r.member(sid)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ErrEmptyText
	}
	r.emit(protocol.TagChatMessage, protocol.ChatMessage{
		Text:      text,
		Sender:    sid,
		Name:      p.DisplayName,
		Timestamp: r.stamp(),
	}, r.toAll())
	return nil
}

func (r *Room) announce(sid domain.SessionID, text string) error {
	if _, err := r.member(sid); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ErrEmptyText
	}
	r.emit(protocol.TagSystemAnnouncement, protocol.SystemAnnouncement{Text: text, Timestamp: r.stamp()}, r.toAll())
	return nil
}

func (r *Room) mediaState(sid domain.SessionID, video, audio bool) error {
	if _, err := r.member(sid); err != nil {
		return err
	}
	r.emit(protocol.TagMediaStateChange, protocol.MediaStateChange{
		PeerID:       sid,
		VideoEnabled: video,
		AudioEnabled: audio,
	}, r.toAllExcept(sid))
	return nil
}

func (r *Room) relay(from, target domain.SessionID, signal json.RawMessage) error {
	if _, err := r.member(from); err != nil {
		return err
	}
	if _, ok := r.participants[target]; !ok {
		r.log.Warn().Str("sid", string(from)).Str("target", string(target)).Msg("relay target not in room")
		return fmt.Errorf("relay to %s: %w", target, domain.ErrUnknownRelayTarget)
	}
	r.emit(protocol.TagSignalRelay, protocol.SignalRelay{From: from, Signal: signal}, toOne(target))
	return nil
}

func (r *Room) createTask(sid domain.SessionID, text string) (domain.Task, error) {
	p, err := r.member(sid)
	if err != nil {
		return domain.Task{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Task{}, domain.ErrEmptyText
	}
	if rs := []rune(text); len(rs) > domain.MaxTaskTextLen {
		text = string(rs[:domain.MaxTaskTextLen])
	}
	t := domain.Task{
		ID:        domain.TaskID(r.newID()),
		Text:      text,
		CreatedBy: p.DisplayName,
		CreatedAt: r.now(),
	}
	r.tasks = append(r.tasks, t)
	r.taskChanged(sid, t, domain.TaskAdded)
	return t, nil
}

func (r *Room) toggleTask(sid domain.SessionID, id domain.TaskID) (domain.Task, error) {
	if _, err := r.member(sid); err != nil {
		return domain.Task{}, err
	}
	i := slices.IndexFunc(r.tasks, func(t domain.Task) bool { return t.ID == id })
	if i < 0 {
		return domain.Task{}, fmt.Errorf("toggle %s: %w", id, domain.ErrTaskNotFound)
	}
	r.tasks[i].Completed = !r.tasks[i].Completed
	action := domain.TaskCompleted
	if !r.tasks[i].Completed {
		action = domain.TaskReopened
	}
	r.taskChanged(sid, r.tasks[i], action)
	return r.tasks[i], nil
}

func (r *Room) deleteTask(sid domain.SessionID, id domain.TaskID) error {
	if _, err := r.member(sid); err != nil {
		return err
	}
	i := slices.IndexFunc(r.tasks, func(t domain.Task) bool { return t.ID == id })
	if i < 0 {
		return fmt.Errorf("delete %s: %w", id, domain.ErrTaskNotFound)
	}
	t := r.tasks[i]
	r.tasks = slices.Delete(r.tasks, i, i+1)
	r.taskChanged(sid, t, domain.TaskDeleted)
	return nil
}

// taskChanged broadcasts the full list, then tells everyone else what happened.
func (r *Room) taskChanged(actor domain.SessionID, t domain.Task, action domain.TaskAction) {
	r.emit(protocol.TagTaskSync, r.taskSync(), r.toAll())
	r.emit(protocol.TagTaskNotification, protocol.TaskNotification{
		Task:   protocol.TaskViewOf(t),
		Action: action,
	}, r.toAllExcept(actor))
}

func (r *Room) member(sid domain.SessionID) (domain.Participant, error) {
	p, ok := r.participants[sid]
	if !ok {
		return domain.Participant{}, fmt.Errorf("room %s: %w", r.meta.ID, domain.ErrNotJoined)
	}
	return p, nil
}

// stamp returns a server timestamp that never goes backwards within the room.
func (r *Room) stamp() time.Time {
	t := r.now()
	if t.Before(r.lastStamp) {
		t = r.lastStamp
	}
	r.lastStamp = t
	return t
}

func (r *Room) snapshot(self domain.SessionID) protocol.RosterSnapshot {
	views := make([]protocol.ParticipantView, 0, len(r.order))
	for _, sid := range r.order {
		views = append(views, protocol.ViewOf(r.participants[sid]))
	}
	return protocol.RosterSnapshot{
		Self:                    self,
		RoomID:                  r.meta.ID,
		RoomName:                string(r.meta.Name),
		RoomDescription:         r.meta.Description,
		IsPrivate:               r.meta.IsPrivate,
		CurrentParticipantCount: len(r.order),
		Participants:            views,
	}
}

func (r *Room) taskSync() protocol.TaskSync {
	return protocol.TaskSync{Tasks: protocol.TaskViews(r.tasks)}
}
