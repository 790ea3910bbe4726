package server

import (
	"errors"
	"net/http"

	"association-party/internal/game"
	"association-party/internal/web"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleHome(c *gin.Context) {
	templ.Handler(web.Home()).ServeHTTP(c.Writer, c.Request)
}

func (s *Server) handleRoomView(c *gin.Context) {
	var uri roomCodeURI
	if err := c.ShouldBindUri(&uri); err != nil {
		templ.Handler(web.NotFound(c.Param("code")), templ.WithStatus(http.StatusNotFound)).ServeHTTP(c.Writer, c.Request)
		return
	}
	ctx := c.Request.Context()
	room, err := s.engine.FindRoom(ctx, uri.normalized())
	if errors.Is(err, game.ErrRoomNotFound) {
		templ.Handler(web.NotFound(uri.normalized()), templ.WithStatus(http.StatusNotFound)).ServeHTTP(c.Writer, c.Request)
		return
	}
	if err != nil {
		writeEngineError(c, err)
		return
	}
	state, err := s.engine.InitializeRoomState(ctx, room.ID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	page := web.RoomPage{
		RoomID:      room.ID,
		Code:        room.Code,
		Status:      string(room.Status),
		PlayerCount: len(state.Players()),
		MaxPlayers:  s.engine.MaxPlayers(),
		QRPath:      "/api/rooms/" + room.Code + "/qr",
	}
	templ.Handler(web.Room(page)).ServeHTTP(c.Writer, c.Request)
}
