package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"beacon/internal/adapters/signal"
	"beacon/internal/config"
	"beacon/internal/domain"
	"beacon/internal/history"
)

func genClientToken() string {
	return uuid.NewString()
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

func SetupRouter(ctx context.Context, cfg *config.Config, ctrl *signal.Controller, store *history.Store) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	sessionStore := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("BeaconSessions", sessionStore))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/messages", messagesHandler(store))

	api.GET("/ws/chat", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client_token", c.GetString("client_token")).Msg("ws chat endpoint hit")
		ctrl.HandleChat(ctx, c)
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client_token", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r
}

// messagesHandler serves chat backfill: the newest messages, oldest first.
// The store clamps absent, zero or oversized limits to its window.
func messagesHandler(store *history.Store) gin.HandlerFunc {
	type messagesResponse struct {
		Success  bool                 `json:"success"`
		Messages []domain.ChatMessage `json:"messages"`
	}
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		msgs, err := store.Recent(limit)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("history read failed")
			c.JSON(http.StatusInternalServerError, messagesResponse{Success: false, Messages: []domain.ChatMessage{}})
			return
		}
		if msgs == nil {
			msgs = []domain.ChatMessage{}
		}
		c.JSON(http.StatusOK, messagesResponse{Success: true, Messages: msgs})
	}
}
