// Package mesh keeps one direct media link per remote participant. It reacts
// to roster events, owns the local capture stream and retries failed links
// under a RetryPolicy.
package mesh

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Spaces/internal/domain"
)

var (
	ErrRejected      = errors.New("call rejected")
	ErrNoLocalStream = fmt.Errorf("no local stream: %w", domain.ErrMediaAcquisition)
)

type Config struct {
	Self        domain.SessionID
	Dialer      Dialer
	Media       MediaSource
	Names       Names
	Renderer    Renderer
	Broadcaster Broadcaster
	Clock       Clock
	Retry       RetryPolicy
}

type Manager struct {
	ctx context.Context
	cfg Config

	mu     sync.Mutex
	links  map[domain.SessionID]*link
	local  LocalStream
	video  bool
	audio  bool
	closed bool

	log zerolog.Logger
}

// batch collects side effects to run once the lock is released.
type batch []func()

func (b *batch) add(f func()) { *b = append(*b, f) }

func (b batch) run() {
	for _, f := range b {
		f()
	}
}

// New returns a manager whose calls live until ctx is done or Close.
func New(ctx context.Context, cfg Config) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Renderer == nil {
		cfg.Renderer = nopRenderer{}
	}
	if cfg.Names == nil {
		cfg.Names = noNames{}
	}
	return &Manager{
		ctx:   ctx,
		cfg:   cfg,
		links: make(map[domain.SessionID]*link),
		video: true,
		audio: true,
		log:   log.With().Str("module", "client.mesh").Str("sid", string(cfg.Self)).Logger(),
	}
}

// AcquireMedia obtains the local stream and starts every deferred link. It
// is a no-op once a stream is held.
func (m *Manager) AcquireMedia(ctx context.Context) error {
	m.mu.Lock()
	if m.closed || m.local != nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	stream, err := m.cfg.Media.Acquire(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("local media unavailable")
		return fmt.Errorf("acquire media: %w: %w", domain.ErrMediaAcquisition, err)
	}

	var b batch
	m.mu.Lock()
	if m.closed || m.local != nil {
		m.mu.Unlock()
		stream.Close()
		return nil
	}
	m.local = stream
	stream.SetVideo(m.video)
	stream.SetAudio(m.audio)
	for _, l := range m.sorted() {
		if l.State == domain.LinkAbsent {
			m.connect(l, &b)
		}
	}
	m.mu.Unlock()

	m.log.Info().Msg("local media ready")
	b.run()
	return nil
}

// PeerJoined registers a remote. The link is dialed now if the local
// stream is ready, otherwise when it becomes ready.
func (m *Manager) PeerJoined(remote domain.SessionID) {
	if remote == "" || remote == m.cfg.Self {
		return
	}
	var b batch
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if _, ok := m.links[remote]; ok {
		m.mu.Unlock()
		return
	}
	l := newLink(remote)
	m.links[remote] = l
	if m.local != nil {
		m.connect(l, &b)
	} else {
		m.log.Debug().Str("remote", string(remote)).Msg("link deferred until local media")
	}
	m.mu.Unlock()
	b.run()
}

// PeerLeft closes the link for good.
func (m *Manager) PeerLeft(remote domain.SessionID) {
	var b batch
	m.mu.Lock()
	l, ok := m.links[remote]
	if !ok {
		m.mu.Unlock()
		return
	}
	l.departed = true
	m.close(l, &b)
	m.mu.Unlock()
	m.log.Info().Str("remote", string(remote)).Msg("peer left, link closed")
	b.run()
}

// HandleOffer decides whether to answer an inbound call. While our own call
// to remote is still connecting, the call from the smaller session id wins.
// An inbound call for an active link replaces it.
func (m *Manager) HandleOffer(remote domain.SessionID, offer Offer) error {
	var b batch
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrRejected
	}
	if m.local == nil {
		m.mu.Unlock()
		m.log.Warn().Str("remote", string(remote)).Msg("inbound call without local media")
		return fmt.Errorf("answer %s: %w", remote, ErrNoLocalStream)
	}
	l, ok := m.links[remote]
	if !ok {
		l = newLink(remote)
		m.links[remote] = l
	}
	if l.departed {
		m.mu.Unlock()
		return fmt.Errorf("answer %s: %w", remote, ErrRejected)
	}
	if l.State == domain.LinkConnecting && !l.inbound && remote > m.cfg.Self {
		m.mu.Unlock()
		m.log.Debug().Str("remote", string(remote)).Msg("glare, keeping own call")
		return fmt.Errorf("answer %s: glare: %w", remote, ErrRejected)
	}

	if l.State == domain.LinkConnecting || l.State == domain.LinkActive {
		call, detach := l.toClosed()
		m.release(remote, call, detach, &b)
	}
	gen := l.toConnecting(true)
	local := m.local
	m.mu.Unlock()
	b.run()

	m.log.Debug().Str("remote", string(remote)).Str("call", offer.CallID).Msg("answering")
	call, err := m.cfg.Dialer.Accept(m.ctx, remote, offer, local, m.observer(remote, gen))
	m.attach(remote, gen, call, err)
	if err != nil {
		return fmt.Errorf("answer %s: %w: %w", remote, domain.ErrPeerConnection, err)
	}
	return nil
}

// SetVideo toggles the local video track and tells the room.
func (m *Manager) SetVideo(on bool) {
	m.toggle(func() { m.video = on }, func(s LocalStream) { s.SetVideo(on) })
}

// SetAudio toggles the local audio track and tells the room.
func (m *Manager) SetAudio(on bool) {
	m.toggle(func() { m.audio = on }, func(s LocalStream) { s.SetAudio(on) })
}

func (m *Manager) toggle(set func(), apply func(LocalStream)) {
	m.mu.Lock()
	set()
	local, video, audio := m.local, m.video, m.audio
	m.mu.Unlock()

	if local != nil {
		apply(local)
	}
	if m.cfg.Broadcaster == nil {
		return
	}
	if err := m.cfg.Broadcaster.BroadcastMediaState(video, audio); err != nil {
		m.log.Warn().Err(err).Msg("broadcast media state")
	}
}

// RemoteMediaState records a remote's toggles; it only changes indicators.
func (m *Manager) RemoteMediaState(remote domain.SessionID, video, audio bool) {
	var b batch
	m.mu.Lock()
	if l, ok := m.links[remote]; ok {
		l.VideoEnabled, l.AudioEnabled = video, audio
		if l.attached {
			b.add(func() { m.cfg.Renderer.Indicators(remote, video, audio) })
		}
	}
	m.mu.Unlock()
	b.run()
}

// LocalState reports the local toggles and whether a stream is held.
func (m *Manager) LocalState() (video, audio, ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.video, m.audio, m.local != nil
}

func (m *Manager) Link(remote domain.SessionID) (domain.PeerLink, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[remote]
	if !ok {
		return domain.PeerLink{RemoteSessionID: remote}, false
	}
	return l.PeerLink, true
}

// Links returns every known link ordered by remote id.
func (m *Manager) Links() []domain.PeerLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.PeerLink, 0, len(m.links))
	for _, l := range m.sorted() {
		out = append(out, l.PeerLink)
	}
	return out
}

// Close tears down every link and releases the local stream.
func (m *Manager) Close() {
	var b batch
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, l := range m.sorted() {
		l.departed = true
		m.close(l, &b)
	}
	local := m.local
	m.local = nil
	m.mu.Unlock()

	b.run()
	if local != nil {
		local.Close()
	}
	m.log.Info().Msg("mesh closed")
}

// connect starts an outbound attempt. Caller holds mu and a local stream.
func (m *Manager) connect(l *link, b *batch) {
	remote := l.RemoteSessionID
	gen := l.toConnecting(false)
	local := m.local
	m.log.Debug().Str("remote", string(remote)).Int("attempt", l.failures+1).Msg("dialing")
	b.add(func() {
		call, err := m.cfg.Dialer.Dial(m.ctx, remote, local, m.observer(remote, gen))
		m.attach(remote, gen, call, err)
	})
}

// attach stores the call of attempt gen, or releases it when the attempt was
// superseded meanwhile.
func (m *Manager) attach(remote domain.SessionID, gen uint64, call Call, err error) {
	var b batch
	m.mu.Lock()
	l, ok := m.links[remote]
	switch {
	case !ok || l.gen != gen || m.closed:
		if call != nil {
			b.add(func() { _ = call.Close() })
		}
	case err != nil:
		m.fail(l, err, &b)
	default:
		l.call = call
	}
	m.mu.Unlock()
	b.run()
}

func (m *Manager) observer(remote domain.SessionID, gen uint64) Observer {
	return Observer{
		Stream: func() { m.streamUp(remote, gen) },
		Failed: func(err error) { m.callFailed(remote, gen, err) },
	}
}

func (m *Manager) streamUp(remote domain.SessionID, gen uint64) {
	var b batch
	m.mu.Lock()
	l, ok := m.links[remote]
	if !ok || l.gen != gen || l.State != domain.LinkConnecting {
		m.mu.Unlock()
		return
	}
	l.toActive()
	l.attached = true
	label := m.label(remote)
	video, audio := l.VideoEnabled, l.AudioEnabled
	m.mu.Unlock()

	m.log.Info().Str("remote", string(remote)).Str("label", label).Msg("link active")
	b.add(func() {
		m.cfg.Renderer.Attach(remote, label)
		m.cfg.Renderer.Indicators(remote, video, audio)
	})
	b.run()
}

func (m *Manager) callFailed(remote domain.SessionID, gen uint64, err error) {
	var b batch
	m.mu.Lock()
	if l, ok := m.links[remote]; ok && l.gen == gen && !m.closed {
		m.fail(l, err, &b)
	}
	m.mu.Unlock()
	b.run()
}

// fail closes the current attempt and schedules the next one if the policy
// allows it. Caller holds mu.
func (m *Manager) fail(l *link, err error, b *batch) {
	remote := l.RemoteSessionID
	call, detach := l.toClosed()
	m.release(remote, call, detach, b)
	l.failures++
	l.RetryCount = l.failures

	delay, ok := m.cfg.Retry.Next(l.failures)
	if !ok || l.departed {
		m.log.Warn().Err(err).Str("remote", string(remote)).Int("attempts", l.failures).Msg("link failed permanently")
		return
	}
	m.log.Warn().Err(err).Str("remote", string(remote)).Dur("retry_in", delay).Msg("link failed, retrying")
	gen := l.gen
	l.timer = m.cfg.Clock.AfterFunc(delay, func() { m.retry(remote, gen) })
}

func (m *Manager) retry(remote domain.SessionID, gen uint64) {
	var b batch
	m.mu.Lock()
	l, ok := m.links[remote]
	if ok && l.gen == gen && l.State == domain.LinkClosed && !l.departed && !m.closed && m.local != nil {
		l.timer = nil
		m.connect(l, &b)
	}
	m.mu.Unlock()
	b.run()
}

// close forces l closed without retry. Caller holds mu.
func (m *Manager) close(l *link, b *batch) {
	call, detach := l.toClosed()
	m.release(l.RemoteSessionID, call, detach, b)
}

func (m *Manager) release(remote domain.SessionID, call Call, detach bool, b *batch) {
	if call != nil {
		b.add(func() {
			if err := call.Close(); err != nil {
				m.log.Debug().Err(err).Str("remote", string(remote)).Msg("close call")
			}
		})
	}
	if detach {
		b.add(func() { m.cfg.Renderer.Detach(remote) })
	}
}

func (m *Manager) label(remote domain.SessionID) string {
	if name, ok := m.cfg.Names.DisplayName(remote); ok && name != "" {
		return name
	}
	return string(remote)
}

func (m *Manager) sorted() []*link {
	out := make([]*link, 0, len(m.links))
	for _, l := range m.links {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b *link) int {
		return strings.Compare(string(a.RemoteSessionID), string(b.RemoteSessionID))
	})
	return out
}
