package game

import (
	"context"
	"fmt"
	"sort"
)

// CalculateVoteTallies counts the round's guesses per picked item, highest
// first. Equal counts fall back to item order index; callers should not rely
// on that order.
func (e *Engine) CalculateVoteTallies(ctx context.Context, roomID uint, roundNumber int) ([]VoteTally, error) {
	guesses, err := e.store.GuessesByRound(ctx, roomID, roundNumber)
	if err != nil {
		return nil, fmt.Errorf("load guesses: %w", err)
	}
	items, err := e.store.GuessItemsByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	byID := make(map[uint]GuessItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	counts := make(map[uint]int)
	for _, guess := range guesses {
		counts[guess.GuessedItemID]++
	}
	tallies := make([]VoteTally, 0, len(counts))
	for itemID, count := range counts {
		tallies = append(tallies, VoteTally{
			ItemID: itemID,
			Name:   byID[itemID].Name,
			Count:  count,
		})
	}
	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].Count != tallies[j].Count {
			return tallies[i].Count > tallies[j].Count
		}
		return byID[tallies[i].ItemID].OrderIndex < byID[tallies[j].ItemID].OrderIndex
	})
	return tallies, nil
}

// AwardPoints gives PointsPerCorrect to every correct guesser of the round and
// returns their ids. It is not idempotent; RevealAnswer is the only caller
// that may run it, once per round.
func (e *Engine) AwardPoints(ctx context.Context, roomID uint, round *Round) ([]uint, error) {
	guesses, err := e.store.GuessesByRound(ctx, roomID, round.RoundNumber)
	if err != nil {
		return nil, fmt.Errorf("load guesses: %w", err)
	}
	winners := make([]uint, 0, len(guesses))
	for _, guess := range guesses {
		if guess.GuessedItemID != round.GuessItemID {
			continue
		}
		if err := e.store.AddUserScore(ctx, guess.UserID, PointsPerCorrect); err != nil {
			return winners, fmt.Errorf("award user %d: %w", guess.UserID, err)
		}
		winners = append(winners, guess.UserID)
	}
	return winners, nil
}

// RevealVotes closes guessing on the active round and tallies the votes.
func (e *Engine) RevealVotes(ctx context.Context, roomID uint) (*Round, []VoteTally, error) {
	round, err := e.advanceRound(ctx, roomID, RoundActive, RoundVoting)
	if err != nil {
		return nil, nil, err
	}
	tallies, err := e.CalculateVoteTallies(ctx, roomID, round.RoundNumber)
	if err != nil {
		return nil, nil, err
	}
	return round, tallies, nil
}

type Reveal struct {
	Round   *Round
	Answer  GuessItem
	Tallies []VoteTally
	Correct []uint
}

// RevealAnswer shows the round's item and scores it. Only the caller that
// moves the round from voting to revealed awards points.
func (e *Engine) RevealAnswer(ctx context.Context, roomID uint) (*Reveal, error) {
	round, err := e.advanceRound(ctx, roomID, RoundVoting, RoundRevealed)
	if err != nil {
		return nil, err
	}
	correct, err := e.AwardPoints(ctx, roomID, round)
	if err != nil {
		return nil, err
	}
	answer, err := e.store.GuessItemByID(ctx, round.GuessItemID)
	if err != nil {
		return nil, fmt.Errorf("load answer: %w", err)
	}
	tallies, err := e.CalculateVoteTallies(ctx, roomID, round.RoundNumber)
	if err != nil {
		return nil, err
	}
	return &Reveal{Round: round, Answer: *answer, Tallies: tallies, Correct: correct}, nil
}

func (e *Engine) advanceRound(ctx context.Context, roomID uint, from, to RoundStatus) (*Round, error) {
	round, err := e.currentRound(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if round == nil || round.Status != from {
		return nil, ErrWrongPhase
	}
	ok, err := e.store.SetRoundStatusIf(ctx, round.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("update round status: %w", err)
	}
	if !ok {
		return nil, ErrWrongPhase
	}
	round.Status = to
	if to == RoundRevealed {
		at := e.now()
		round.RevealedAt = &at
	}
	return round, nil
}

// Leaderboard ranks the room's players by score, then nickname.
func (e *Engine) Leaderboard(ctx context.Context, roomID uint) ([]LeaderboardEntry, error) {
	users, err := e.store.UsersByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	board := make([]LeaderboardEntry, 0, len(users))
	for _, player := range playersOf(users) {
		board = append(board, LeaderboardEntry{
			UserID:   player.ID,
			Nickname: player.Nickname,
			Score:    player.Score,
		})
	}
	sort.SliceStable(board, func(i, j int) bool {
		if board[i].Score != board[j].Score {
			return board[i].Score > board[j].Score
		}
		return board[i].Nickname < board[j].Nickname
	})
	return board, nil
}
