package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Spaces/internal/app/router"
	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/protocol"
)

type roomsHandler struct {
	store   core.DirectoryStore
	router  *router.Router
	timeout time.Duration
}

// privateRooms lists directory records with the password redacted.
func (h *roomsHandler) privateRooms(c *gin.Context) {
	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	recs, err := h.store.List(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("directory list")
		c.JSON(http.StatusServiceUnavailable, protocol.Error{
			Code:    protocol.CodeDirectoryWrite,
			Message: "directory unavailable",
		})
		return
	}
	out := make([]protocol.DirectoryEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, protocol.DirectoryEntryOf(rec))
	}
	c.JSON(http.StatusOK, out)
}

func (h *roomsHandler) liveRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.router.Registry().List())
}

func (h *roomsHandler) health(c *gin.Context) {
	sess := sessions.Default(c)
	visits, _ := sess.Get("visits").(int)
	sess.Set("visits", visits+1)
	if err := sess.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"rooms":  len(h.router.Registry().List()),
	})
}

func (h *roomsHandler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}
