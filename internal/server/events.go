package server

import (
	"context"
	"log"

	"association-party/internal/game"
)

// recordEvent appends to the room's audit log. A failed append is logged and
// never blocks the game.
func (s *Server) recordEvent(ctx context.Context, event game.Event) {
	if err := s.engine.Store().AppendEvent(ctx, event); err != nil {
		log.Printf("event append failed room_id=%d type=%s error=%v", event.RoomID, event.Type, err)
	}
}
