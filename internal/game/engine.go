// Package game holds the rules of the association party game: room lifecycle,
// item assignment, round queues, options, tallies and scoring. It reads and
// writes state only through Store and never talks to clients.
package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

const defaultMaxPlayers = 50

type Engine struct {
	store      Store
	rand       Rand
	now        func() time.Time
	maxPlayers int
}

type Option func(*Engine)

func WithRand(r Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.rand = r
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithMaxPlayers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPlayers = n
		}
	}
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		rand:       NewRand(),
		now:        func() time.Time { return time.Now().UTC() },
		maxPlayers: defaultMaxPlayers,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Store() Store {
	return e.store
}

func (e *Engine) MaxPlayers() int {
	return e.maxPlayers
}

// GetRoomState assembles a snapshot of the room. The bool is false when the
// room does not exist.
func (e *Engine) GetRoomState(ctx context.Context, roomID uint) (*RoomState, bool, error) {
	room, err := e.store.RoomByID(ctx, roomID)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load room: %w", err)
	}
	users, err := e.store.UsersByRoom(ctx, roomID)
	if err != nil {
		return nil, false, fmt.Errorf("load users: %w", err)
	}
	items, err := e.store.GuessItemsByRoom(ctx, roomID)
	if err != nil {
		return nil, false, fmt.Errorf("load items: %w", err)
	}
	round, err := e.currentRound(ctx, roomID)
	if err != nil {
		return nil, false, err
	}
	associations, err := e.store.AssociationsByRoom(ctx, roomID)
	if err != nil {
		return nil, false, fmt.Errorf("load associations: %w", err)
	}
	guesses, err := e.store.GuessesByRoom(ctx, roomID)
	if err != nil {
		return nil, false, fmt.Errorf("load guesses: %w", err)
	}
	return &RoomState{
		Room:         *room,
		Users:        users,
		Items:        items,
		CurrentRound: round,
		Associations: associations,
		Guesses:      guesses,
	}, true, nil
}

// InitializeRoomState is GetRoomState for callers that require the room to
// exist; a missing room is ErrRoomNotFound.
func (e *Engine) InitializeRoomState(ctx context.Context, roomID uint) (*RoomState, error) {
	state, ok, err := e.GetRoomState(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("room %d: %w", roomID, ErrRoomNotFound)
	}
	return state, nil
}

func (e *Engine) currentRound(ctx context.Context, roomID uint) (*Round, error) {
	round, err := e.store.CurrentRound(ctx, roomID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load current round: %w", err)
	}
	return round, nil
}

func (e *Engine) CreateRoom(ctx context.Context, hostNickname string) (*Room, *User, error) {
	nickname, err := ValidateNickname(hostNickname)
	if err != nil {
		return nil, nil, err
	}
	room, host, err := e.store.CreateRoom(ctx, nickname)
	if err != nil {
		return nil, nil, fmt.Errorf("create room: %w", err)
	}
	return room, host, nil
}

// JoinRoom adds a player to a lobby by join code.
func (e *Engine) JoinRoom(ctx context.Context, code, nickname string) (*Room, *User, error) {
	name, err := ValidateNickname(nickname)
	if err != nil {
		return nil, nil, err
	}
	room, err := e.roomByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if room.Status != RoomLobby {
		return nil, nil, conflict("game already started")
	}
	users, err := e.store.UsersByRoom(ctx, room.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load users: %w", err)
	}
	for _, user := range users {
		if SameNickname(user.Nickname, name) {
			return nil, nil, conflict("nickname already taken")
		}
	}
	if len(playersOf(users)) >= e.maxPlayers {
		return nil, nil, conflict("room is full")
	}
	user, err := e.store.CreateUser(ctx, name, room.ID)
	if errors.Is(err, ErrRoomClosed) {
		return nil, nil, conflict("game already started")
	}
	if errors.Is(err, ErrDuplicate) {
		return nil, nil, conflict("nickname already taken")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}
	return room, user, nil
}

// Reconnect resolves an existing user of the room identified by code.
func (e *Engine) Reconnect(ctx context.Context, code string, userID uint) (*Room, *User, error) {
	room, err := e.roomByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	user, err := e.store.UserByID(ctx, userID)
	if errors.Is(err, ErrNotFound) || (err == nil && user.RoomID != room.ID) {
		return nil, nil, ErrNotAuthorized
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	return room, user, nil
}

// Member returns the user when it belongs to the room.
func (e *Engine) Member(ctx context.Context, roomID, userID uint) (*Room, *User, error) {
	room, err := e.store.RoomByID(ctx, roomID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load room: %w", err)
	}
	user, err := e.store.UserByID(ctx, userID)
	if errors.Is(err, ErrNotFound) || (err == nil && user.RoomID != roomID) {
		return room, nil, ErrNotAuthorized
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	return room, user, nil
}

// FindRoom looks a room up by join code; a miss is ErrRoomNotFound.
func (e *Engine) FindRoom(ctx context.Context, code string) (*Room, error) {
	return e.roomByCode(ctx, code)
}

func (e *Engine) roomByCode(ctx context.Context, code string) (*Room, error) {
	room, err := e.store.RoomByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	return room, nil
}

// StartGame validates the lobby and item list, creates the items and starts
// the submission phase. It returns the assignment map and created items.
func (e *Engine) StartGame(ctx context.Context, roomID uint, rawItems []string) (map[uint]uint, []GuessItem, error) {
	state, err := e.InitializeRoomState(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if state.Room.Status != RoomLobby {
		return nil, nil, ErrWrongPhase
	}
	players := len(state.Players())
	if players < MinPlayers {
		return nil, nil, invalid("at least %d players are needed to start", MinPlayers)
	}
	names := NormalizeItems(rawItems)
	if len(names) < MinItems {
		return nil, nil, invalid("at least %d different items are needed to start", MinItems)
	}
	if len(names) > players {
		return nil, nil, invalid("too many items (%d) for %d players", len(names), players)
	}
	ok, err := e.store.SetRoomStatusIf(ctx, roomID, RoomLobby, RoomSubmitting)
	if err != nil {
		return nil, nil, fmt.Errorf("lock lobby: %w", err)
	}
	if !ok {
		return nil, nil, ErrWrongPhase
	}
	items, err := e.store.CreateGuessItems(ctx, roomID, names)
	if err != nil {
		e.abortStart(ctx, roomID)
		return nil, nil, fmt.Errorf("create items: %w", err)
	}
	assignments, err := e.StartSubmissionPhase(ctx, roomID)
	if err != nil {
		e.abortStart(ctx, roomID)
		return nil, nil, err
	}
	return assignments, items, nil
}

// abortStart returns a half-started room to the lobby so the host can retry.
func (e *Engine) abortStart(ctx context.Context, roomID uint) {
	if err := e.store.DeleteGuessItems(ctx, roomID); err != nil {
		log.Printf("rollback failed room_id=%d step=delete_items error=%v", roomID, err)
	}
	e.rollbackStatus(ctx, roomID, RoomSubmitting, RoomLobby)
}

func (e *Engine) rollbackStatus(ctx context.Context, roomID uint, from, to RoomStatus) {
	ok, err := e.store.SetRoomStatusIf(ctx, roomID, from, to)
	if err != nil {
		log.Printf("rollback failed room_id=%d from=%s to=%s error=%v", roomID, from, to, err)
		return
	}
	if !ok {
		log.Printf("rollback skipped room_id=%d from=%s to=%s reason=status changed", roomID, from, to)
	}
}

// CancelGame finishes a room that never left the lobby.
func (e *Engine) CancelGame(ctx context.Context, roomID uint) error {
	ok, err := e.store.SetRoomStatusIf(ctx, roomID, RoomLobby, RoomFinished)
	if err != nil {
		return fmt.Errorf("cancel game: %w", err)
	}
	if !ok {
		return ErrWrongPhase
	}
	return nil
}
