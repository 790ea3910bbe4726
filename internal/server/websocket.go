package server

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"association-party/internal/game"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var (
	errSessionClosed = errors.New("session closed")
	errSendBuffer    = errors.New("send buffer full")
)

// wsSession is one websocket connection registered with the hub. Writes go
// through a buffered channel drained by writePump.
type wsSession struct {
	id     string
	userID uint
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func newWSSession(conn *websocket.Conn, userID uint) *wsSession {
	return &wsSession{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *wsSession) ID() string   { return c.id }
func (c *wsSession) UserID() uint { return c.userID }

func (c *wsSession) Send(data []byte) error {
	select {
	case <-c.done:
		return errSessionClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendBuffer
	}
}

func (c *wsSession) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *wsSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *wsSession) readPump(handle func(data []byte)) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		handle(data)
	}
}

func (s *Server) handleWebsocket(c *gin.Context) {
	roomID, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	userID, _ := strconv.ParseUint(c.Query("userId"), 10, 64)
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade failed room_id=%d error=%v", roomID, err)
		return
	}
	ctx := context.Background()
	who := actor{roomID: uint(roomID), userID: uint(userID)}
	if _, _, err := s.engine.Member(ctx, who.roomID, who.userID); err != nil {
		log.Printf("ws rejected room_id=%d user_id=%d reason=%v", roomID, userID, err)
		rejectConn(conn, "unknown room or user")
		return
	}
	session := newWSSession(conn, who.userID)
	who.session = session
	if !s.hub.Register(who.roomID, session) {
		rejectConn(conn, "server shutting down")
		return
	}
	log.Printf("ws connected room_id=%d user_id=%d session=%s remote=%s", roomID, userID, session.ID(), c.Request.RemoteAddr)
	go session.writePump()

	s.welcome(ctx, who)
	s.broadcastRoomState(ctx, who.roomID)

	err = session.readPump(func(data []byte) {
		s.handleMessage(ctx, who, data)
	})
	log.Printf("ws disconnected room_id=%d user_id=%d session=%s error=%v", roomID, userID, session.ID(), err)
	s.hub.Unregister(who.roomID, session)
	_ = session.Close()
	s.broadcastRoomState(ctx, who.roomID)
}

func rejectConn(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(writeWait))
	_ = conn.Close()
}

// welcome brings a fresh session up to date: the room snapshot, the caller's
// assignment while words are being written, and the round while guesses are
// still open. Voting and revealed rounds are described by room_state alone.
func (s *Server) welcome(ctx context.Context, who actor) {
	state, ok, err := s.publicSnapshot(ctx, who.roomID)
	if err != nil || !ok {
		log.Printf("ws welcome failed room_id=%d error=%v", who.roomID, err)
		return
	}
	s.send(who.session, outboundMessage{Type: msgRoomState, Payload: state})

	store := s.engine.Store()
	switch game.RoomStatus(state.Room.Status) {
	case game.RoomSubmitting:
		itemID, err := store.AssignmentByUser(ctx, who.roomID, who.userID)
		if err != nil {
			return
		}
		item, err := store.GuessItemByID(ctx, itemID)
		if err != nil {
			log.Printf("ws welcome failed room_id=%d error=%v", who.roomID, err)
			return
		}
		s.send(who.session, outboundMessage{Type: msgAssignment, Payload: assignmentPayload{ItemID: item.ID, ItemName: item.Name}})
	case game.RoomGuessing, game.RoomLightning:
		round, err := store.CurrentRound(ctx, who.roomID)
		if err != nil || round.Status != game.RoundActive {
			return
		}
		payload, err := s.roundPayload(ctx, who.roomID, round)
		if err != nil {
			log.Printf("ws welcome failed room_id=%d error=%v", who.roomID, err)
			return
		}
		s.send(who.session, outboundMessage{Type: msgRoundStarted, Payload: payload})
	}
}
