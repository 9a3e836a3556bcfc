package session

import (
	"context"

	"github.com/dkeye/Spaces/internal/adapters/rtc"
	"github.com/dkeye/Spaces/internal/protocol"
)

// loop is the only consumer of server events.
func (s *Session) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-s.conn.Incoming():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrDisconnected
			}
			s.handle(ctx, env)
		}
	}
}

func (s *Session) handle(ctx context.Context, env protocol.Envelope) {
	if _, err := s.mirror.Apply(env); err != nil {
		s.log.Warn().Err(err).Str("type", env.Type).Msg("bad roster event")
		return
	}

	switch env.Type {
	case protocol.TagRosterSnapshot:
		for _, p := range s.mirror.Participants() {
			s.mesh.PeerJoined(p.SessionID)
		}
	case protocol.TagParticipantJoined:
		var v protocol.ParticipantView
		if err := protocol.DecodePayload(env, &v); err == nil {
			s.mesh.PeerJoined(v.SessionID)
		}
	case protocol.TagParticipantLeft:
		var v protocol.ParticipantView
		if err := protocol.DecodePayload(env, &v); err == nil {
			s.mesh.PeerLeft(v.SessionID)
		}
	case protocol.TagMediaStateChange:
		var m protocol.MediaStateChange
		if err := protocol.DecodePayload(env, &m); err != nil {
			s.log.Warn().Err(err).Msg("bad media state")
			return
		}
		s.mesh.RemoteMediaState(m.PeerID, m.VideoEnabled, m.AudioEnabled)
	case protocol.TagSignalRelay:
		if err := rtc.HandleRelay(ctx, s.dialer, env.Payload); err != nil {
			s.log.Warn().Err(err).Msg("bad relayed signal")
		}
		return
	case protocol.TagTaskSync:
		var ts protocol.TaskSync
		if err := protocol.DecodePayload(env, &ts); err != nil {
			s.log.Warn().Err(err).Msg("bad task list")
			return
		}
		s.mu.Lock()
		s.tasks = ts.Tasks
		s.mu.Unlock()
	case protocol.TagError:
		var e protocol.Error
		_ = protocol.DecodePayload(env, &e)
		s.log.Warn().Str("code", e.Code).Str("message", e.Message).Msg("server error")
	}

	if s.cfg.OnEvent != nil {
		s.cfg.OnEvent(env)
	}
}
