package server

import (
	"net/http"
	"slices"

	"association-party/internal/config"
	"association-party/internal/game"
	"association-party/internal/hub"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Server struct {
	engine   *game.Engine
	hub      *hub.Registry
	cfg      config.Config
	upgrader websocket.Upgrader
}

func New(engine *game.Engine, registry *hub.Registry, cfg config.Config) *Server {
	return &Server{
		engine: engine,
		hub:    registry,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *Server) Handler() http.Handler {
	registerValidators()
	router := gin.New()
	router.Use(gin.Recovery(), cors.New(s.corsConfig()))

	router.GET("/", s.handleHome)
	router.GET("/rooms/:code", s.handleRoomView)

	api := router.Group("/api")
	api.POST("/rooms", s.handleCreateRoom)
	api.POST("/rooms/:code/join", s.handleJoinRoom)
	api.POST("/rooms/:code/reconnect", s.handleReconnect)
	api.GET("/rooms/:code/state", s.handleRoomState)
	api.GET("/rooms/:code/qr", s.handleRoomQR)

	router.GET("/ws/rooms/:id", s.handleWebsocket)
	return router
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	origins := s.cfg.AllowedOrigins()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	return cfg
}
