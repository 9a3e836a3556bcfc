package broker

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Peer is one broker socket. send is closed by the hub only.
type Peer struct {
	id     domain.SessionID
	remote string
	conn   *websocket.Conn
	send   chan core.Frame
}

func newPeer(id domain.SessionID, conn *websocket.Conn) *Peer {
	return &Peer{
		id:     id,
		remote: conn.RemoteAddr().String(),
		conn:   conn,
		send:   make(chan core.Frame, sendBuffer),
	}
}

func (p *Peer) readPump(ctx context.Context, h *Hub) {
	defer func() {
		select {
		case h.unregister <- p:
		case <-ctx.Done():
		}
		_ = p.conn.Close()
	}()

	p.conn.SetReadLimit(maxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("module", "adapters.broker").Str("sid", string(p.id)).Msg("read error")
			}
			return
		}
		env, err := protocol.Decode(data)
		if err != nil || env.Type != protocol.TagSignal {
			log.Warn().Err(err).Str("module", "adapters.broker").Str("sid", string(p.id)).Str("type", env.Type).Msg("unexpected frame")
			continue
		}
		var msg protocol.BrokerSignal
		if err := protocol.DecodePayload(env, &msg); err != nil || msg.To == "" {
			log.Warn().Err(err).Str("module", "adapters.broker").Str("sid", string(p.id)).Msg("bad signal payload")
			continue
		}
		select {
		case h.forward <- routed{from: p, msg: msg}:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
