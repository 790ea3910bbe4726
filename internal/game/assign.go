package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// AssignGuessItems spreads players across items as evenly as possible: every
// item gets floor(N/M) players and the first N mod M items by order index get
// one more. Which player lands on which item is random.
func (e *Engine) AssignGuessItems(players []User, items []GuessItem) map[uint]uint {
	assignments := make(map[uint]uint, len(players))
	if len(items) == 0 || len(players) == 0 {
		return assignments
	}
	ordered := append([]GuessItem(nil), items...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OrderIndex < ordered[j].OrderIndex
	})
	pool := shuffled(e.rand, players)
	base := len(pool) / len(ordered)
	extra := len(pool) % len(ordered)
	next := 0
	for i, item := range ordered {
		count := base
		if i < extra {
			count++
		}
		for k := 0; k < count && next < len(pool); k++ {
			assignments[pool[next].ID] = item.ID
			next++
		}
	}
	return assignments
}

// StartSubmissionPhase moves the room to submitting and persists a fresh
// assignment for every player. Calling it twice re-shuffles.
func (e *Engine) StartSubmissionPhase(ctx context.Context, roomID uint) (map[uint]uint, error) {
	state, err := e.InitializeRoomState(ctx, roomID)
	if err != nil {
		return nil, err
	}
	players := state.Players()
	if len(state.Items) == 0 {
		return nil, invalid("no items to assign")
	}
	if len(state.Items) > len(players) {
		return nil, invalid("too many items (%d) for %d players", len(state.Items), len(players))
	}
	if err := e.store.UpdateRoomStatus(ctx, roomID, RoomSubmitting); err != nil {
		return nil, fmt.Errorf("update room status: %w", err)
	}
	assignments := e.AssignGuessItems(players, state.Items)
	if err := e.store.SetAssignments(ctx, roomID, assignments); err != nil {
		return nil, fmt.Errorf("save assignments: %w", err)
	}
	return assignments, nil
}

// CheckAllSubmitted reports whether every assigned player has submitted.
func (e *Engine) CheckAllSubmitted(ctx context.Context, roomID uint) (bool, error) {
	assignments, err := e.store.AssignmentsByRoom(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("load assignments: %w", err)
	}
	if len(assignments) == 0 {
		return false, nil
	}
	associations, err := e.store.AssociationsByRoom(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("load associations: %w", err)
	}
	submitted := make(map[uint]struct{}, len(associations))
	for _, association := range associations {
		submitted[association.UserID] = struct{}{}
	}
	for userID := range assignments {
		if _, ok := submitted[userID]; !ok {
			return false, nil
		}
	}
	return true, nil
}

type AssociationResult struct {
	Association  *Association
	AllSubmitted bool
}

// SubmitAssociation records the caller's word for their assigned item.
func (e *Engine) SubmitAssociation(ctx context.Context, roomID, userID uint, value string) (*AssociationResult, error) {
	room, user, err := e.Member(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if room.Status != RoomSubmitting {
		return nil, ErrWrongPhase
	}
	if user.IsHost {
		return nil, ErrNotAuthorized
	}
	itemID, err := e.store.AssignmentByUser(ctx, roomID, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotAuthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load assignment: %w", err)
	}
	word, err := NormalizeAssociation(value)
	if err != nil {
		return nil, err
	}
	existing, err := e.store.AssociationByUserAndItem(ctx, userID, itemID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load association: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadySubmitted
	}
	association, err := e.store.CreateAssociation(ctx, userID, itemID, word)
	if errors.Is(err, ErrDuplicate) {
		return nil, ErrAlreadySubmitted
	}
	if err != nil {
		return nil, fmt.Errorf("create association: %w", err)
	}
	all, err := e.CheckAllSubmitted(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &AssociationResult{Association: association, AllSubmitted: all}, nil
}

// SubmissionProgress returns how many assigned players have submitted.
func (e *Engine) SubmissionProgress(ctx context.Context, roomID uint) (submitted, assigned int, err error) {
	assignments, err := e.store.AssignmentsByRoom(ctx, roomID)
	if err != nil {
		return 0, 0, fmt.Errorf("load assignments: %w", err)
	}
	associations, err := e.store.AssociationsByRoom(ctx, roomID)
	if err != nil {
		return 0, 0, fmt.Errorf("load associations: %w", err)
	}
	seen := make(map[uint]struct{})
	for _, association := range associations {
		if _, ok := assignments[association.UserID]; ok {
			seen[association.UserID] = struct{}{}
		}
	}
	return len(seen), len(assignments), nil
}
