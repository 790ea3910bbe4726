package server

import (
	"log"
	"net/http"
	"strings"

	"association-party/internal/game"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

type nicknameRequest struct {
	Nickname string `json:"nickname" binding:"required,nickname"`
}

type reconnectRequest struct {
	UserID uint `json:"userId" binding:"required"`
}

type roomCodeURI struct {
	Code string `uri:"code" binding:"required,roomcode"`
}

func (r roomCodeURI) normalized() string {
	return strings.ToUpper(r.Code)
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	var req nicknameRequest
	if !bindJSON(c, &req, nicknameMessages) {
		return
	}
	ctx := c.Request.Context()
	room, host, err := s.engine.CreateRoom(ctx, req.Nickname)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	log.Printf("room created room_id=%d code=%s host_id=%d", room.ID, room.Code, host.ID)
	s.recordEvent(ctx, game.Event{
		RoomID:  room.ID,
		UserID:  host.ID,
		Type:    "room_created",
		Payload: map[string]any{"code": room.Code},
	})
	c.JSON(http.StatusCreated, joinResponse{
		RoomID:   room.ID,
		Code:     room.Code,
		UserID:   host.ID,
		Nickname: host.Nickname,
		IsHost:   true,
	})
}

func (s *Server) handleJoinRoom(c *gin.Context) {
	var uri roomCodeURI
	if !bindURI(c, &uri) {
		return
	}
	var req nicknameRequest
	if !bindJSON(c, &req, nicknameMessages) {
		return
	}
	ctx := c.Request.Context()
	room, user, err := s.engine.JoinRoom(ctx, uri.normalized(), req.Nickname)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	log.Printf("player joined room_id=%d user_id=%d", room.ID, user.ID)
	s.recordEvent(ctx, game.Event{
		RoomID:  room.ID,
		UserID:  user.ID,
		Type:    "player_joined",
		Payload: map[string]any{"nickname": user.Nickname},
	})
	s.broadcastRoomState(ctx, room.ID)
	c.JSON(http.StatusOK, joinResponse{
		RoomID:   room.ID,
		Code:     room.Code,
		UserID:   user.ID,
		Nickname: user.Nickname,
	})
}

func (s *Server) handleReconnect(c *gin.Context) {
	var uri roomCodeURI
	if !bindURI(c, &uri) {
		return
	}
	var req reconnectRequest
	if !bindJSON(c, &req, reconnectMessages) {
		return
	}
	room, user, err := s.engine.Reconnect(c.Request.Context(), uri.normalized(), req.UserID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, joinResponse{
		RoomID:   room.ID,
		Code:     room.Code,
		UserID:   user.ID,
		Nickname: user.Nickname,
		IsHost:   user.IsHost,
	})
}

func (s *Server) handleRoomState(c *gin.Context) {
	var uri roomCodeURI
	if !bindURI(c, &uri) {
		return
	}
	ctx := c.Request.Context()
	room, err := s.engine.FindRoom(ctx, uri.normalized())
	if err != nil {
		writeEngineError(c, err)
		return
	}
	state, ok, err := s.publicSnapshot(ctx, room.ID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleRoomQR(c *gin.Context) {
	var uri roomCodeURI
	if !bindURI(c, &uri) {
		return
	}
	room, err := s.engine.FindRoom(c.Request.Context(), uri.normalized())
	if err != nil {
		writeEngineError(c, err)
		return
	}
	png, err := qrcode.Encode(s.roomURL(c.Request, room.Code), qrcode.Medium, qrSize)
	if err != nil {
		log.Printf("qr generation failed room_id=%d error=%v", room.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr generation failed"})
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}
