package game

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Store lookups that match nothing.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned by Store inserts that violate a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrRoomClosed is returned by CreateUser once the room has left the lobby.
	ErrRoomClosed = errors.New("room is not accepting players")
)

type RoomStore interface {
	CreateRoom(ctx context.Context, hostNickname string) (*Room, *User, error)
	RoomByID(ctx context.Context, id uint) (*Room, error)
	RoomByCode(ctx context.Context, code string) (*Room, error)
	UpdateRoomStatus(ctx context.Context, id uint, status RoomStatus) error
	// SetRoomStatusIf moves the room to status "to" only when it is currently "from".
	SetRoomStatusIf(ctx context.Context, id uint, from, to RoomStatus) (bool, error)
}

type UserStore interface {
	// CreateUser adds a player atomically with a check that the room is still
	// in the lobby.
	CreateUser(ctx context.Context, nickname string, roomID uint) (*User, error)
	UserByID(ctx context.Context, id uint) (*User, error)
	UsersByRoom(ctx context.Context, roomID uint) ([]User, error)
	AddUserScore(ctx context.Context, id uint, delta int) error
}

type GuessItemStore interface {
	CreateGuessItems(ctx context.Context, roomID uint, names []string) ([]GuessItem, error)
	DeleteGuessItems(ctx context.Context, roomID uint) error
	GuessItemsByRoom(ctx context.Context, roomID uint) ([]GuessItem, error)
	GuessItemByID(ctx context.Context, id uint) (*GuessItem, error)
}

type AssociationStore interface {
	CreateAssociation(ctx context.Context, userID, itemID uint, value string) (*Association, error)
	AssociationsByRoom(ctx context.Context, roomID uint) ([]Association, error)
	AssociationsByItem(ctx context.Context, itemID uint) ([]Association, error)
	AssociationByUserAndItem(ctx context.Context, userID, itemID uint) (*Association, error)
}

type AssignmentStore interface {
	SetAssignments(ctx context.Context, roomID uint, assignments map[uint]uint) error
	AssignmentByUser(ctx context.Context, roomID, userID uint) (uint, error)
	AssignmentsByRoom(ctx context.Context, roomID uint) (map[uint]uint, error)
}

type GuessStore interface {
	CreateGuess(ctx context.Context, userID, itemID, guessedItemID uint, roundNumber int) (*Guess, error)
	GuessesByRound(ctx context.Context, roomID uint, roundNumber int) ([]Guess, error)
	GuessesByRoom(ctx context.Context, roomID uint) ([]Guess, error)
	GuessByUserAndRound(ctx context.Context, userID uint, roundNumber int) (*Guess, error)
}

type RoundStore interface {
	CreateRound(ctx context.Context, roomID, itemID uint, roundNumber int) (*Round, error)
	// CurrentRound returns the room's non-completed round, or ErrNotFound.
	CurrentRound(ctx context.Context, roomID uint) (*Round, error)
	// LatestRoundNumber returns the highest round number created for the room, 0 when none.
	LatestRoundNumber(ctx context.Context, roomID uint) (int, error)
	UpdateRoundStatus(ctx context.Context, id uint, status RoundStatus) error
	SetRoundStatusIf(ctx context.Context, id uint, from, to RoundStatus) (bool, error)
}

type RoundOptionStore interface {
	SetRoundOptions(ctx context.Context, roomID uint, roundNumber int, itemIDs []uint) error
	RoundOptions(ctx context.Context, roomID uint, roundNumber int) ([]uint, error)
}

type RoundQueueStore interface {
	SetRoundQueue(ctx context.Context, roomID uint, phase QueuePhase, itemIDs []uint) error
	// NextQueued returns the first not-yet-played item id, or ErrNotFound when exhausted.
	NextQueued(ctx context.Context, roomID uint, phase QueuePhase) (uint, error)
	MarkQueuedPlayed(ctx context.Context, roomID uint, phase QueuePhase, itemID uint) error
}

type EventStore interface {
	AppendEvent(ctx context.Context, event Event) error
}

// Store is everything the engine needs from persistence.
type Store interface {
	RoomStore
	UserStore
	GuessItemStore
	AssociationStore
	AssignmentStore
	GuessStore
	RoundStore
	RoundOptionStore
	RoundQueueStore
	EventStore
}
