package server

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"association-party/internal/game"

	"github.com/gin-gonic/gin"
)

// writeEngineError maps engine errors to HTTP responses.
func writeEngineError(c *gin.Context, err error) {
	if verr, ok := game.IsValidation(err); ok {
		status := http.StatusBadRequest
		if verr.Conflict {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": verr.Reason})
		return
	}
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
	case errors.Is(err, game.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this room"})
	default:
		log.Printf("request failed method=%s path=%s error=%v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// roomURL builds the absolute join link for a room, preferring PUBLIC_URL.
func (s *Server) roomURL(r *http.Request, code string) string {
	if base := strings.TrimRight(s.cfg.PublicURL, "/"); base != "" {
		return base + "/rooms/" + code
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + "/rooms/" + code
}
