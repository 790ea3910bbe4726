// Package memory is a process-local game.Store. It is used when no database is
// configured and by tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"association-party/internal/game"
)

const maxCodeAttempts = 50

type queueEntry struct {
	itemID uint
	played bool
}

type optionKey struct {
	roomID      uint
	roundNumber int
}

type queueKey struct {
	roomID uint
	phase  game.QueuePhase
}

type Store struct {
	mu     sync.Mutex
	nextID uint
	rand   game.Rand
	now    func() time.Time

	rooms        map[uint]*game.Room
	users        map[uint]*game.User
	items        map[uint]*game.GuessItem
	associations []game.Association
	assignments  map[uint]map[uint]uint
	guesses      []game.Guess
	rounds       map[uint]*game.Round
	options      map[optionKey][]uint
	queues       map[queueKey][]queueEntry
	events       []game.Event
}

func New(r game.Rand) *Store {
	if r == nil {
		r = game.NewRand()
	}
	return &Store{
		nextID:      1,
		rand:        r,
		now:         func() time.Time { return time.Now().UTC() },
		rooms:       make(map[uint]*game.Room),
		users:       make(map[uint]*game.User),
		items:       make(map[uint]*game.GuessItem),
		assignments: make(map[uint]map[uint]uint),
		rounds:      make(map[uint]*game.Round),
		options:     make(map[optionKey][]uint),
		queues:      make(map[queueKey][]queueEntry),
	}
}

func (s *Store) id() uint {
	id := s.nextID
	s.nextID++
	return id
}

func (s *Store) CreateRoom(ctx context.Context, hostNickname string) (*game.Room, *game.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := ""
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		candidate := game.NewRoomCode(s.rand)
		if !s.codeInUse(candidate) {
			code = candidate
			break
		}
	}
	if code == "" {
		return nil, nil, errors.New("no free room code")
	}
	now := s.now()
	room := &game.Room{
		ID:        s.id(),
		Code:      code,
		Status:    game.RoomLobby,
		CreatedAt: now,
	}
	host := &game.User{
		ID:       s.id(),
		Nickname: hostNickname,
		RoomID:   room.ID,
		IsHost:   true,
		JoinedAt: now,
	}
	room.HostID = host.ID
	s.rooms[room.ID] = room
	s.users[host.ID] = host
	roomCopy, hostCopy := *room, *host
	return &roomCopy, &hostCopy, nil
}

func (s *Store) codeInUse(code string) bool {
	for _, room := range s.rooms {
		if room.Code == code && room.Status != game.RoomFinished {
			return true
		}
	}
	return false
}

func (s *Store) RoomByID(ctx context.Context, id uint) (*game.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, game.ErrNotFound
	}
	out := *room
	return &out, nil
}

// RoomByCode prefers a live room when a finished one shares the code.
func (s *Store) RoomByCode(ctx context.Context, code string) (*game.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code = strings.ToUpper(strings.TrimSpace(code))
	var found *game.Room
	for _, room := range s.rooms {
		if room.Code != code {
			continue
		}
		if found == nil || (found.Status == game.RoomFinished && room.Status != game.RoomFinished) || (room.Status == found.Status && room.ID > found.ID) {
			found = room
		}
	}
	if found == nil {
		return nil, game.ErrNotFound
	}
	out := *found
	return &out, nil
}

func (s *Store) UpdateRoomStatus(ctx context.Context, id uint, status game.RoomStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return game.ErrNotFound
	}
	room.Status = status
	return nil
}

func (s *Store) SetRoomStatusIf(ctx context.Context, id uint, from, to game.RoomStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return false, game.ErrNotFound
	}
	if room.Status != from {
		return false, nil
	}
	room.Status = to
	return true, nil
}

func (s *Store) CreateUser(ctx context.Context, nickname string, roomID uint) (*game.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, game.ErrNotFound
	}
	if room.Status != game.RoomLobby {
		return nil, game.ErrRoomClosed
	}
	for _, user := range s.users {
		if user.RoomID == roomID && game.SameNickname(user.Nickname, nickname) {
			return nil, game.ErrDuplicate
		}
	}
	user := &game.User{
		ID:       s.id(),
		Nickname: nickname,
		RoomID:   roomID,
		JoinedAt: s.now(),
	}
	s.users[user.ID] = user
	out := *user
	return &out, nil
}

func (s *Store) UserByID(ctx context.Context, id uint) (*game.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, game.ErrNotFound
	}
	out := *user
	return &out, nil
}

func (s *Store) UsersByRoom(ctx context.Context, roomID uint) ([]game.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]game.User, 0)
	for _, user := range s.users {
		if user.RoomID == roomID {
			users = append(users, *user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *Store) AddUserScore(ctx context.Context, id uint, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return game.ErrNotFound
	}
	user.Score += delta
	return nil
}

func (s *Store) CreateGuessItems(ctx context.Context, roomID uint, names []string) ([]game.GuessItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]game.GuessItem, 0, len(names))
	for i, name := range names {
		item := &game.GuessItem{
			ID:         s.id(),
			RoomID:     roomID,
			Name:       name,
			OrderIndex: i,
		}
		s.items[item.ID] = item
		items = append(items, *item)
	}
	return items, nil
}

func (s *Store) DeleteGuessItems(ctx context.Context, roomID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, item := range s.items {
		if item.RoomID == roomID {
			delete(s.items, id)
		}
	}
	return nil
}

func (s *Store) GuessItemsByRoom(ctx context.Context, roomID uint) ([]game.GuessItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]game.GuessItem, 0)
	for _, item := range s.items {
		if item.RoomID == roomID {
			items = append(items, *item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].OrderIndex < items[j].OrderIndex })
	return items, nil
}

func (s *Store) GuessItemByID(ctx context.Context, id uint) (*game.GuessItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, game.ErrNotFound
	}
	out := *item
	return &out, nil
}

func (s *Store) CreateAssociation(ctx context.Context, userID, itemID uint, value string) (*game.Association, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.associations {
		if existing.UserID == userID && existing.GuessItemID == itemID {
			return nil, game.ErrDuplicate
		}
	}
	association := game.Association{
		ID:          s.id(),
		UserID:      userID,
		GuessItemID: itemID,
		Value:       value,
		SubmittedAt: s.now(),
	}
	s.associations = append(s.associations, association)
	return &association, nil
}

func (s *Store) AssociationsByRoom(ctx context.Context, roomID uint) ([]game.Association, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]game.Association, 0)
	for _, association := range s.associations {
		if item, ok := s.items[association.GuessItemID]; ok && item.RoomID == roomID {
			out = append(out, association)
		}
	}
	return out, nil
}

func (s *Store) AssociationsByItem(ctx context.Context, itemID uint) ([]game.Association, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]game.Association, 0)
	for _, association := range s.associations {
		if association.GuessItemID == itemID {
			out = append(out, association)
		}
	}
	return out, nil
}

func (s *Store) AssociationByUserAndItem(ctx context.Context, userID, itemID uint) (*game.Association, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, association := range s.associations {
		if association.UserID == userID && association.GuessItemID == itemID {
			out := association
			return &out, nil
		}
	}
	return nil, game.ErrNotFound
}

func (s *Store) SetAssignments(ctx context.Context, roomID uint, assignments map[uint]uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[uint]uint, len(assignments))
	for userID, itemID := range assignments {
		copied[userID] = itemID
	}
	s.assignments[roomID] = copied
	return nil
}

func (s *Store) AssignmentByUser(ctx context.Context, roomID, userID uint) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	itemID, ok := s.assignments[roomID][userID]
	if !ok {
		return 0, game.ErrNotFound
	}
	return itemID, nil
}

func (s *Store) AssignmentsByRoom(ctx context.Context, roomID uint) (map[uint]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint]uint, len(s.assignments[roomID]))
	for userID, itemID := range s.assignments[roomID] {
		out[userID] = itemID
	}
	return out, nil
}

func (s *Store) CreateGuess(ctx context.Context, userID, itemID, guessedItemID uint, roundNumber int) (*game.Guess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.guesses {
		if existing.UserID == userID && existing.RoundNumber == roundNumber {
			return nil, game.ErrDuplicate
		}
	}
	guess := game.Guess{
		ID:            s.id(),
		UserID:        userID,
		GuessItemID:   itemID,
		GuessedItemID: guessedItemID,
		RoundNumber:   roundNumber,
		SubmittedAt:   s.now(),
	}
	s.guesses = append(s.guesses, guess)
	return &guess, nil
}

func (s *Store) GuessesByRound(ctx context.Context, roomID uint, roundNumber int) ([]game.Guess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]game.Guess, 0)
	for _, guess := range s.guesses {
		if guess.RoundNumber == roundNumber && s.guessInRoom(guess, roomID) {
			out = append(out, guess)
		}
	}
	return out, nil
}

func (s *Store) GuessesByRoom(ctx context.Context, roomID uint) ([]game.Guess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]game.Guess, 0)
	for _, guess := range s.guesses {
		if s.guessInRoom(guess, roomID) {
			out = append(out, guess)
		}
	}
	return out, nil
}

func (s *Store) guessInRoom(guess game.Guess, roomID uint) bool {
	item, ok := s.items[guess.GuessItemID]
	return ok && item.RoomID == roomID
}

func (s *Store) GuessByUserAndRound(ctx context.Context, userID uint, roundNumber int) (*game.Guess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, guess := range s.guesses {
		if guess.UserID == userID && guess.RoundNumber == roundNumber {
			out := guess
			return &out, nil
		}
	}
	return nil, game.ErrNotFound
}

func (s *Store) CreateRound(ctx context.Context, roomID, itemID uint, roundNumber int) (*game.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, round := range s.rounds {
		if round.RoomID != roomID {
			continue
		}
		if round.RoundNumber == roundNumber || round.Status != game.RoundCompleted {
			return nil, game.ErrDuplicate
		}
	}
	round := &game.Round{
		ID:          s.id(),
		RoomID:      roomID,
		GuessItemID: itemID,
		RoundNumber: roundNumber,
		Status:      game.RoundActive,
	}
	s.rounds[round.ID] = round
	out := *round
	return &out, nil
}

func (s *Store) CurrentRound(ctx context.Context, roomID uint) (*game.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, round := range s.rounds {
		if round.RoomID == roomID && round.Status != game.RoundCompleted {
			out := *round
			return &out, nil
		}
	}
	return nil, game.ErrNotFound
}

func (s *Store) LatestRoundNumber(ctx context.Context, roomID uint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := 0
	for _, round := range s.rounds {
		if round.RoomID == roomID && round.RoundNumber > latest {
			latest = round.RoundNumber
		}
	}
	return latest, nil
}

func (s *Store) UpdateRoundStatus(ctx context.Context, id uint, status game.RoundStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	round, ok := s.rounds[id]
	if !ok {
		return game.ErrNotFound
	}
	s.setRoundStatus(round, status)
	return nil
}

func (s *Store) SetRoundStatusIf(ctx context.Context, id uint, from, to game.RoundStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	round, ok := s.rounds[id]
	if !ok {
		return false, game.ErrNotFound
	}
	if round.Status != from {
		return false, nil
	}
	s.setRoundStatus(round, to)
	return true, nil
}

func (s *Store) setRoundStatus(round *game.Round, status game.RoundStatus) {
	round.Status = status
	if status == game.RoundRevealed && round.RevealedAt == nil {
		at := s.now()
		round.RevealedAt = &at
	}
}

func (s *Store) SetRoundOptions(ctx context.Context, roomID uint, roundNumber int, itemIDs []uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := optionKey{roomID: roomID, roundNumber: roundNumber}
	if _, ok := s.options[key]; ok {
		return game.ErrDuplicate
	}
	s.options[key] = append([]uint(nil), itemIDs...)
	return nil
}

func (s *Store) RoundOptions(ctx context.Context, roomID uint, roundNumber int) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, ok := s.options[optionKey{roomID: roomID, roundNumber: roundNumber}]
	if !ok {
		return nil, game.ErrNotFound
	}
	return append([]uint(nil), ids...), nil
}

func (s *Store) SetRoundQueue(ctx context.Context, roomID uint, phase game.QueuePhase, itemIDs []uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]queueEntry, 0, len(itemIDs))
	for _, id := range itemIDs {
		entries = append(entries, queueEntry{itemID: id})
	}
	s.queues[queueKey{roomID: roomID, phase: phase}] = entries
	return nil
}

func (s *Store) NextQueued(ctx context.Context, roomID uint, phase game.QueuePhase) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.queues[queueKey{roomID: roomID, phase: phase}] {
		if !entry.played {
			return entry.itemID, nil
		}
	}
	return 0, game.ErrNotFound
}

func (s *Store) MarkQueuedPlayed(ctx context.Context, roomID uint, phase game.QueuePhase, itemID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.queues[queueKey{roomID: roomID, phase: phase}]
	for i := range entries {
		if entries[i].itemID == itemID && !entries[i].played {
			entries[i].played = true
			return nil
		}
	}
	return game.ErrNotFound
}

func (s *Store) AppendEvent(ctx context.Context, event game.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	s.events = append(s.events, event)
	return nil
}

// Events returns the recorded events of a room in append order.
func (s *Store) Events(roomID uint) []game.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]game.Event, 0)
	for _, event := range s.events {
		if event.RoomID == roomID {
			out = append(out, event)
		}
	}
	return out
}
