package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"association-party/internal/game"
	"association-party/internal/hub"
)

var errMalformed = errors.New("malformed message")

// actor is the identity behind one websocket session.
type actor struct {
	roomID  uint
	userID  uint
	session hub.Session
}

// handleMessage runs one inbound message to completion. Failures are scoped
// to the message: nothing here closes the session or touches other rooms.
func (s *Server) handleMessage(ctx context.Context, who actor, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		s.sendError(who, "invalid message")
		return
	}
	act, ok := actions[msg.Type]
	if !ok {
		s.sendError(who, "unknown message type")
		return
	}
	_, user, err := s.engine.Member(ctx, who.roomID, who.userID)
	if err != nil {
		s.reportError(who, msg.Type, err)
		return
	}
	if act.hostOnly && !user.IsHost {
		log.Printf("ignored host action room_id=%d user_id=%d type=%s", who.roomID, who.userID, msg.Type)
		return
	}
	if err := act.handle(s, ctx, who, msg.Payload); err != nil {
		s.reportError(who, msg.Type, err)
	}
}

// reportError applies the error policy: validation reasons and malformed
// input go back to the sender, authority and phase violations are dropped
// silently, anything else is logged.
func (s *Server) reportError(who actor, msgType string, err error) {
	if verr, ok := game.IsValidation(err); ok {
		s.sendError(who, verr.Reason)
		return
	}
	switch {
	case errors.Is(err, errMalformed):
		s.sendError(who, "invalid message")
	case errors.Is(err, game.ErrNotAuthorized),
		errors.Is(err, game.ErrNotEligible),
		errors.Is(err, game.ErrWrongPhase),
		errors.Is(err, game.ErrAlreadySubmitted),
		errors.Is(err, game.ErrRoomNotFound):
		log.Printf("ignored message room_id=%d user_id=%d type=%s reason=%v", who.roomID, who.userID, msgType, err)
	default:
		log.Printf("message failed room_id=%d user_id=%d type=%s error=%v", who.roomID, who.userID, msgType, err)
	}
}

func decodePayload(raw json.RawMessage, dest any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return errMalformed
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return errMalformed
	}
	return nil
}

func (s *Server) sendError(who actor, message string) {
	s.send(who.session, outboundMessage{Type: msgError, Payload: errorPayload{Message: message}})
}

// send writes to one session only, unlike Unicast which reaches every tab of
// the user.
func (s *Server) send(session hub.Session, msg outboundMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("ws marshal failed type=%s error=%v", msg.Type, err)
		return
	}
	if err := session.Send(data); err != nil {
		log.Printf("ws send failed session=%s type=%s error=%v", session.ID(), msg.Type, err)
	}
}

func (s *Server) broadcast(roomID uint, msgType string, payload any) {
	s.hub.Broadcast(roomID, outboundMessage{Type: msgType, Payload: payload})
}

func (s *Server) unicast(roomID, userID uint, msgType string, payload any) {
	s.hub.Unicast(roomID, userID, outboundMessage{Type: msgType, Payload: payload})
}

func (s *Server) broadcastRoomState(ctx context.Context, roomID uint) {
	state, ok, err := s.publicSnapshot(ctx, roomID)
	if err != nil {
		log.Printf("room state failed room_id=%d error=%v", roomID, err)
		return
	}
	if !ok {
		return
	}
	s.broadcast(roomID, msgRoomState, state)
}
