package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Spaces/internal/adapters/broker"
	"github.com/dkeye/Spaces/internal/adapters/signal"
	"github.com/dkeye/Spaces/internal/app/router"
	"github.com/dkeye/Spaces/internal/config"
	"github.com/dkeye/Spaces/internal/core"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, rt *router.Router, hub *broker.Hub, store core.DirectoryStore) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookies := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("SpacesSessions", cookies))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	rooms := &roomsHandler{store: store, router: rt, timeout: cfg.Directory.Timeout}
	r.GET("/health", rooms.health)
	r.GET("/privateRooms", rooms.privateRooms)

	api := r.Group("/api")
	api.GET("/rooms", rooms.liveRooms)

	ctrl := signal.NewSignalWSController(rt, cfg)
	api.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client_token", c.GetString("client_token")).Msg("ws endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})
	api.GET("/ws/broker", func(c *gin.Context) {
		hub.HandleBroker(ctx, c)
	})

	return r
}
