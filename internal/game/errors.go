package game

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrWrongPhase       = errors.New("action not allowed in current phase")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrNotEligible      = errors.New("not eligible to guess this round")
	ErrAlreadySubmitted = errors.New("already submitted")
)

// ValidationError is a rejected request whose reason is safe to show the sender.
// Conflict marks rejections caused by the room's current state rather than
// by the request itself.
type ValidationError struct {
	Reason   string
	Conflict bool
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...), Conflict: true}
}

// IsValidation reports whether err carries a user-facing rejection reason.
func IsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
