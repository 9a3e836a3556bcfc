package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/domain"
)

type directoryOp struct {
	name string
	fn   func(ctx context.Context) error
}

// directorySync applies roster changes of one private room to the store in
// order, off the room goroutine. Failures are logged and dropped.
// A nil *directorySync is a no-op.
type directorySync struct {
	store   core.DirectoryStore
	room    domain.RoomID
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.Mutex
	queue  []directoryOp
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newDirectorySync(store core.DirectoryStore, room domain.RoomID, timeout time.Duration, logger zerolog.Logger) *directorySync {
	d := &directorySync{
		store:   store,
		room:    room,
		timeout: timeout,
		log:     logger,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *directorySync) addPlayer(p domain.Participant) {
	player := domain.DirectoryPlayer{SessionID: p.SessionID, Name: p.DisplayName}
	d.push("add_player", func(ctx context.Context) error {
		return d.store.AddPlayer(ctx, d.room, player)
	})
}

func (d *directorySync) removePlayer(sid domain.SessionID) {
	d.push("remove_player", func(ctx context.Context) error {
		return d.store.RemovePlayer(ctx, d.room, sid)
	})
}

// deleteAndClose queues the record deletion as the last operation.
func (d *directorySync) deleteAndClose() {
	d.push("delete_room", func(ctx context.Context) error {
		return d.store.Delete(ctx, d.room)
	})
	d.close()
}

func (d *directorySync) push(name string, fn func(ctx context.Context) error) {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, directoryOp{name: name, fn: fn})
	d.mu.Unlock()
	d.signal()
}

func (d *directorySync) close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.signal()
}

func (d *directorySync) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// wait blocks until every queued operation ran.
func (d *directorySync) wait() {
	if d == nil {
		return
	}
	<-d.done
}

func (d *directorySync) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.mu.Unlock()
			<-d.wake
			d.mu.Lock()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		op := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := op.fn(ctx)
		cancel()
		if err != nil {
			d.log.Warn().Err(err).Str("op", op.name).Msg("directory update failed")
		}
	}
}
