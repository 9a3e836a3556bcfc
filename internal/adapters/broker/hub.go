// Package broker is the signaling broker: peers connect with their session id
// and exchange opaque offers, answers and candidates addressed by id.
package broker

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/protocol"
)

type routed struct {
	from *Peer
	msg  protocol.BrokerSignal
}

// Hub owns every broker peer. All state is touched by Run only.
type Hub struct {
	register   chan *Peer
	unregister chan *Peer
	forward    chan routed

	peers map[domain.SessionID]*Peer
	log   zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Peer),
		unregister: make(chan *Peer),
		forward:    make(chan routed),
		peers:      make(map[domain.SessionID]*Peer),
		log:        log.With().Str("module", "adapters.broker").Logger(),
	}
}

// Run processes registrations and signals until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for id, p := range h.peers {
				close(p.send)
				delete(h.peers, id)
			}
			return

		case p := <-h.register:
			if _, taken := h.peers[p.id]; taken {
				h.log.Warn().Str("sid", string(p.id)).Msg("duplicate broker id")
				h.push(p, protocol.TagError, protocol.ErrorPayload(domain.ErrDuplicateSession))
				close(p.send)
				continue
			}
			h.peers[p.id] = p
			h.log.Debug().Str("sid", string(p.id)).Str("remote", p.remote).Msg("peer registered")

		case p := <-h.unregister:
			if cur, ok := h.peers[p.id]; ok && cur == p {
				delete(h.peers, p.id)
				close(p.send)
				h.log.Debug().Str("sid", string(p.id)).Msg("peer unregistered")
			}

		case r := <-h.forward:
			if cur, ok := h.peers[r.from.id]; !ok || cur != r.from {
				continue
			}
			target, ok := h.peers[r.msg.To]
			if !ok {
				h.log.Debug().Str("sid", string(r.from.id)).Str("target", string(r.msg.To)).Msg("signal target unavailable")
				h.push(r.from, protocol.TagUnavailable, protocol.BrokerSignal{To: r.msg.To})
				continue
			}
			r.msg.From = r.from.id
			h.push(target, protocol.TagSignal, r.msg)
		}
	}
}

// push never blocks the hub; a peer that cannot keep up loses the frame.
func (h *Hub) push(p *Peer, tag string, payload any) {
	frame, err := protocol.Encode(tag, payload)
	if err != nil {
		h.log.Error().Err(err).Str("type", tag).Msg("encode")
		return
	}
	select {
	case p.send <- core.Frame(frame):
	default:
		h.log.Warn().Str("sid", string(p.id)).Str("type", tag).Msg("peer buffer full, frame dropped")
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleBroker upgrades a request carrying ?id=<sessionId>.
func (h *Hub) HandleBroker(ctx context.Context, c *gin.Context) {
	id := domain.SessionID(c.Query("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id"})
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("ws upgrade")
		return
	}
	p := newPeer(id, ws)
	select {
	case h.register <- p:
	case <-ctx.Done():
		_ = ws.Close()
		return
	}
	go p.writePump()
	go p.readPump(ctx, h)
}
