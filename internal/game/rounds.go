package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
)

// BeginGuessing leaves the submission phase exactly once, whether triggered by
// the last submission or by the host skipping ahead. A nil round means no item
// was playable and the room finished.
func (e *Engine) BeginGuessing(ctx context.Context, roomID uint) (*Round, error) {
	ok, err := e.store.SetRoomStatusIf(ctx, roomID, RoomSubmitting, RoomGuessing)
	if err != nil {
		return nil, fmt.Errorf("leave submission phase: %w", err)
	}
	if !ok {
		return nil, ErrWrongPhase
	}
	round, err := e.StartGuessingPhase(ctx, roomID)
	if err != nil {
		// Only reopen submissions when no round made it into the store.
		if current, cerr := e.currentRound(ctx, roomID); cerr == nil && current == nil {
			e.rollbackStatus(ctx, roomID, RoomGuessing, RoomSubmitting)
		}
		return nil, err
	}
	return round, nil
}

// StartGuessingPhase builds the standard and lightning queues from items that
// received at least one association and starts the first round.
func (e *Engine) StartGuessingPhase(ctx context.Context, roomID uint) (*Round, error) {
	state, err := e.InitializeRoomState(ctx, roomID)
	if err != nil {
		return nil, err
	}
	covered := make(map[uint]struct{}, len(state.Items))
	for _, association := range state.Associations {
		covered[association.GuessItemID] = struct{}{}
	}
	playable := make([]uint, 0, len(state.Items))
	for _, item := range orderedItems(state.Items) {
		if _, ok := covered[item.ID]; ok {
			playable = append(playable, item.ID)
		}
	}
	if len(playable) == 0 {
		if err := e.store.UpdateRoomStatus(ctx, roomID, RoomFinished); err != nil {
			return nil, fmt.Errorf("finish room: %w", err)
		}
		return nil, nil
	}
	standard, lightning := splitQueues(shuffled(e.rand, playable), len(state.Players()))
	if err := e.store.SetRoundQueue(ctx, roomID, PhaseStandard, standard); err != nil {
		return nil, fmt.Errorf("save standard queue: %w", err)
	}
	if err := e.store.SetRoundQueue(ctx, roomID, PhaseLightning, lightning); err != nil {
		return nil, fmt.Errorf("save lightning queue: %w", err)
	}
	if err := e.store.UpdateRoomStatus(ctx, roomID, RoomGuessing); err != nil {
		return nil, fmt.Errorf("update room status: %w", err)
	}
	return e.StartNextQueuedRound(ctx, roomID, PhaseStandard)
}

// splitQueues caps the standard queue for large rooms and sends the overflow
// to the lightning queue.
func splitQueues(items []uint, players int) (standard, lightning []uint) {
	if players <= LightningThreshold {
		return items, []uint{}
	}
	n := min(StandardRoundCap, len(items))
	return items[:n], items[n:]
}

func orderedItems(items []GuessItem) []GuessItem {
	ordered := append([]GuessItem(nil), items...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OrderIndex < ordered[j].OrderIndex
	})
	return ordered
}

// StartNextQueuedRound pops the head of the named queue and opens a round for
// it. A nil round means the queue is exhausted.
func (e *Engine) StartNextQueuedRound(ctx context.Context, roomID uint, phase QueuePhase) (*Round, error) {
	itemID, err := e.store.NextQueued(ctx, roomID, phase)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s queue: %w", phase, err)
	}
	if err := e.store.MarkQueuedPlayed(ctx, roomID, phase, itemID); err != nil {
		return nil, fmt.Errorf("mark %s queue entry: %w", phase, err)
	}
	latest, err := e.store.LatestRoundNumber(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("read round number: %w", err)
	}
	round, err := e.store.CreateRound(ctx, roomID, itemID, latest+1)
	if err != nil {
		return nil, fmt.Errorf("create round: %w", err)
	}
	status := RoomGuessing
	if phase == PhaseLightning {
		status = RoomLightning
	}
	if err := e.store.UpdateRoomStatus(ctx, roomID, status); err != nil {
		return nil, fmt.Errorf("update room status: %w", err)
	}
	return round, nil
}

// EligibleGuessers returns the players who did not write a word for the
// round's item.
func (e *Engine) EligibleGuessers(ctx context.Context, roomID uint, round *Round) ([]uint, error) {
	users, err := e.store.UsersByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	associations, err := e.store.AssociationsByItem(ctx, round.GuessItemID)
	if err != nil {
		return nil, fmt.Errorf("load associations: %w", err)
	}
	authors := make(map[uint]struct{}, len(associations))
	for _, association := range associations {
		authors[association.UserID] = struct{}{}
	}
	eligible := make([]uint, 0, len(users))
	for _, player := range playersOf(users) {
		if _, wrote := authors[player.ID]; !wrote {
			eligible = append(eligible, player.ID)
		}
	}
	return eligible, nil
}

// EnsureRoundOptions returns the round's option set, building and saving it
// on first use. Later calls return the saved set unchanged.
func (e *Engine) EnsureRoundOptions(ctx context.Context, roomID uint, roundNumber int, correctItemID uint) ([]GuessItem, error) {
	items, err := e.store.GuessItemsByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	saved, err := e.store.RoundOptions(ctx, roomID, roundNumber)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load options: %w", err)
	}
	if len(saved) > 0 {
		return resolveItems(items, saved), nil
	}
	others := make([]uint, 0, len(items))
	for _, item := range orderedItems(items) {
		if item.ID != correctItemID {
			others = append(others, item.ID)
		}
	}
	others = shuffled(e.rand, others)
	if len(others) > OptionCount-1 {
		others = others[:OptionCount-1]
	}
	ids := shuffled(e.rand, append([]uint{correctItemID}, others...))
	err = e.store.SetRoundOptions(ctx, roomID, roundNumber, ids)
	if errors.Is(err, ErrDuplicate) {
		// Another caller saved first; theirs is the set of record.
		saved, err = e.store.RoundOptions(ctx, roomID, roundNumber)
		if err != nil {
			return nil, fmt.Errorf("load options: %w", err)
		}
		return resolveItems(items, saved), nil
	}
	if err != nil {
		return nil, fmt.Errorf("save options: %w", err)
	}
	return resolveItems(items, ids), nil
}

func resolveItems(items []GuessItem, ids []uint) []GuessItem {
	byID := make(map[uint]GuessItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	out := make([]GuessItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			out = append(out, item)
		}
	}
	return out
}

// RoundView is everything a client needs to play a round.
type RoundView struct {
	Round        *Round
	Phase        QueuePhase
	Associations []string
	Options      []GuessItem
	Eligible     []uint
}

// DescribeRound gathers the words, options and eligible guessers of a round.
func (e *Engine) DescribeRound(ctx context.Context, roomID uint, round *Round) (*RoundView, error) {
	room, err := e.store.RoomByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	associations, err := e.store.AssociationsByItem(ctx, round.GuessItemID)
	if err != nil {
		return nil, fmt.Errorf("load associations: %w", err)
	}
	words := make([]string, 0, len(associations))
	for _, association := range associations {
		words = append(words, association.Value)
	}
	options, err := e.EnsureRoundOptions(ctx, roomID, round.RoundNumber, round.GuessItemID)
	if err != nil {
		return nil, err
	}
	eligible, err := e.EligibleGuessers(ctx, roomID, round)
	if err != nil {
		return nil, err
	}
	phase := PhaseStandard
	if room.Status == RoomLightning {
		phase = PhaseLightning
	}
	return &RoundView{
		Round:        round,
		Phase:        phase,
		Associations: words,
		Options:      options,
		Eligible:     eligible,
	}, nil
}

type GuessResult struct {
	Guess    *Guess
	Count    int
	Eligible int
}

// SubmitGuess records an eligible player's pick for the active round.
func (e *Engine) SubmitGuess(ctx context.Context, roomID, userID, guessedItemID uint) (*GuessResult, error) {
	room, _, err := e.Member(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if room.Status != RoomGuessing && room.Status != RoomLightning {
		return nil, ErrWrongPhase
	}
	round, err := e.currentRound(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if round == nil || round.Status != RoundActive {
		return nil, ErrWrongPhase
	}
	eligible, err := e.EligibleGuessers(ctx, roomID, round)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(eligible, userID) {
		return nil, ErrNotEligible
	}
	options, err := e.EnsureRoundOptions(ctx, roomID, round.RoundNumber, round.GuessItemID)
	if err != nil {
		return nil, err
	}
	if !slices.ContainsFunc(options, func(item GuessItem) bool { return item.ID == guessedItemID }) {
		return nil, invalid("that is not one of this round's options")
	}
	existing, err := e.store.GuessByUserAndRound(ctx, userID, round.RoundNumber)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load guess: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadySubmitted
	}
	guess, err := e.store.CreateGuess(ctx, userID, round.GuessItemID, guessedItemID, round.RoundNumber)
	if errors.Is(err, ErrDuplicate) {
		return nil, ErrAlreadySubmitted
	}
	if err != nil {
		return nil, fmt.Errorf("create guess: %w", err)
	}
	guesses, err := e.store.GuessesByRound(ctx, roomID, round.RoundNumber)
	if err != nil {
		return nil, fmt.Errorf("load guesses: %w", err)
	}
	return &GuessResult{Guess: guess, Count: len(guesses), Eligible: len(eligible)}, nil
}

// AdvanceToNextRound completes the revealed round and starts the next one:
// standard queue first, then lightning. A nil round means the game finished.
func (e *Engine) AdvanceToNextRound(ctx context.Context, roomID uint) (*Round, error) {
	room, err := e.store.RoomByID(ctx, roomID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	if room.Status != RoomGuessing && room.Status != RoomLightning {
		return nil, ErrWrongPhase
	}
	current, err := e.currentRound(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrWrongPhase
	}
	ok, err := e.store.SetRoundStatusIf(ctx, current.ID, RoundRevealed, RoundCompleted)
	if err != nil {
		return nil, fmt.Errorf("complete round: %w", err)
	}
	if !ok {
		return nil, ErrWrongPhase
	}
	return e.continueQueues(ctx, roomID, room.Status)
}

// ResumeRounds restarts play in a guessing room that has no open round. That
// only happens when an earlier transition failed part way through.
func (e *Engine) ResumeRounds(ctx context.Context, roomID uint) (*Round, error) {
	room, err := e.store.RoomByID(ctx, roomID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	if room.Status != RoomGuessing && room.Status != RoomLightning {
		return nil, ErrWrongPhase
	}
	current, err := e.currentRound(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, ErrWrongPhase
	}
	latest, err := e.store.LatestRoundNumber(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("read round number: %w", err)
	}
	if latest == 0 {
		return e.StartGuessingPhase(ctx, roomID)
	}
	return e.continueQueues(ctx, roomID, room.Status)
}

// continueQueues starts the next queued round, standard queue first unless
// the room already reached lightning. A nil round means the game finished.
func (e *Engine) continueQueues(ctx context.Context, roomID uint, status RoomStatus) (*Round, error) {
	if status == RoomGuessing {
		next, err := e.StartNextQueuedRound(ctx, roomID, PhaseStandard)
		if err != nil || next != nil {
			return next, err
		}
	}
	next, err := e.StartNextQueuedRound(ctx, roomID, PhaseLightning)
	if err != nil || next != nil {
		return next, err
	}
	if err := e.store.UpdateRoomStatus(ctx, roomID, RoomFinished); err != nil {
		return nil, fmt.Errorf("finish room: %w", err)
	}
	return nil, nil
}
