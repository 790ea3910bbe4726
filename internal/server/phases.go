package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"association-party/internal/game"
)

type action struct {
	hostOnly bool
	handle   func(s *Server, ctx context.Context, who actor, payload json.RawMessage) error
}

// actions is the protocol's transition table. Phase guards live in the
// engine, which rejects out-of-phase calls with game.ErrWrongPhase.
var actions = map[string]action{
	msgStartGame:         {hostOnly: true, handle: (*Server).startGame},
	msgCancelGame:        {hostOnly: true, handle: (*Server).cancelGame},
	msgSubmitAssociation: {handle: (*Server).submitAssociation},
	msgSubmitGuess:       {handle: (*Server).submitGuess},
	msgRevealVotes:       {hostOnly: true, handle: (*Server).revealVotes},
	msgRevealAnswer:      {hostOnly: true, handle: (*Server).revealAnswer},
	msgNextRound:         {hostOnly: true, handle: (*Server).nextRound},
	msgSkipStage:         {hostOnly: true, handle: (*Server).skipStage},
}

func (s *Server) startGame(ctx context.Context, who actor, raw json.RawMessage) error {
	var payload startGamePayload
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}
	assignments, items, err := s.engine.StartGame(ctx, who.roomID, payload.Items)
	if err != nil {
		return err
	}
	log.Printf("game started room_id=%d items=%d players=%d", who.roomID, len(items), len(assignments))
	s.recordEvent(ctx, game.Event{
		RoomID:  who.roomID,
		UserID:  who.userID,
		Type:    "game_started",
		Payload: map[string]any{"items": len(items), "players": len(assignments)},
	})
	s.broadcast(who.roomID, msgGameStarted, gameStartedPayload{ItemCount: len(items), PlayerCount: len(assignments)})
	names := make(map[uint]string, len(items))
	for _, item := range items {
		names[item.ID] = item.Name
	}
	for userID, itemID := range assignments {
		s.unicast(who.roomID, userID, msgAssignment, assignmentPayload{ItemID: itemID, ItemName: names[itemID]})
	}
	s.broadcastRoomState(ctx, who.roomID)
	return nil
}

func (s *Server) cancelGame(ctx context.Context, who actor, _ json.RawMessage) error {
	if err := s.engine.CancelGame(ctx, who.roomID); err != nil {
		return err
	}
	log.Printf("game cancelled room_id=%d", who.roomID)
	s.recordEvent(ctx, game.Event{RoomID: who.roomID, UserID: who.userID, Type: "game_cancelled"})
	s.broadcast(who.roomID, msgGameCancelled, nil)
	s.broadcastRoomState(ctx, who.roomID)
	return nil
}

func (s *Server) submitAssociation(ctx context.Context, who actor, raw json.RawMessage) error {
	var payload associationPayload
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}
	result, err := s.engine.SubmitAssociation(ctx, who.roomID, who.userID, payload.Value)
	if err != nil {
		return err
	}
	s.recordEvent(ctx, game.Event{
		RoomID:  who.roomID,
		UserID:  who.userID,
		Type:    "association_submitted",
		Payload: map[string]any{"itemId": result.Association.GuessItemID},
	})
	submitted, assigned, err := s.engine.SubmissionProgress(ctx, who.roomID)
	if err != nil {
		return err
	}
	s.broadcast(who.roomID, msgAssociationSubmitted, associationSubmittedPayload{
		UserID:         who.userID,
		SubmittedCount: submitted,
		AssignedCount:  assigned,
	})
	if result.AllSubmitted {
		if err := s.beginGuessing(ctx, who.roomID); err != nil {
			return err
		}
	}
	s.broadcastRoomState(ctx, who.roomID)
	return nil
}

// beginGuessing leaves the submission phase. Losing the race to another
// caller is not an error: the winner announces the round.
func (s *Server) beginGuessing(ctx context.Context, roomID uint) error {
	round, err := s.engine.BeginGuessing(ctx, roomID)
	if errors.Is(err, game.ErrWrongPhase) {
		return nil
	}
	if err != nil {
		return err
	}
	if round == nil {
		return s.finishGame(ctx, roomID)
	}
	return s.announceRound(ctx, roomID, round)
}

func (s *Server) submitGuess(ctx context.Context, who actor, raw json.RawMessage) error {
	var payload guessPayload
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}
	if payload.ItemID == 0 {
		return errMalformed
	}
	result, err := s.engine.SubmitGuess(ctx, who.roomID, who.userID, payload.ItemID)
	if err != nil {
		return err
	}
	s.recordEvent(ctx, game.Event{
		RoomID:      who.roomID,
		RoundNumber: result.Guess.RoundNumber,
		UserID:      who.userID,
		Type:        "guess_submitted",
		Payload:     map[string]any{"guessedItemId": result.Guess.GuessedItemID},
	})
	s.broadcast(who.roomID, msgGuessSubmitted, guessSubmittedPayload{
		UserID:        who.userID,
		RoundNumber:   result.Guess.RoundNumber,
		GuessCount:    result.Count,
		EligibleCount: result.Eligible,
	})
	s.broadcastRoomState(ctx, who.roomID)
	return nil
}

func (s *Server) revealVotes(ctx context.Context, who actor, _ json.RawMessage) error {
	round, tallies, err := s.engine.RevealVotes(ctx, who.roomID)
	if err != nil {
		return err
	}
	s.recordEvent(ctx, game.Event{
		RoomID:      who.roomID,
		RoundNumber: round.RoundNumber,
		UserID:      who.userID,
		Type:        "votes_revealed",
		Payload:     map[string]any{"tallies": tallies},
	})
	s.broadcast(who.roomID, msgVotesRevealed, votesRevealedPayload{RoundNumber: round.RoundNumber, Tallies: tallies})
	s.broadcastRoomState(ctx, who.roomID)
	return nil
}

func (s *Server) revealAnswer(ctx context.Context, who actor, _ json.RawMessage) error {
	reveal, err := s.engine.RevealAnswer(ctx, who.roomID)
	if err != nil {
		return err
	}
	log.Printf("answer revealed room_id=%d round=%d correct=%d", who.roomID, reveal.Round.RoundNumber, len(reveal.Correct))
	s.recordEvent(ctx, game.Event{
		RoomID:      who.roomID,
		RoundNumber: reveal.Round.RoundNumber,
		UserID:      who.userID,
		Type:        "answer_revealed",
		Payload:     map[string]any{"itemId": reveal.Answer.ID, "correct": reveal.Correct},
	})
	board, err := s.engine.Leaderboard(ctx, who.roomID)
	if err != nil {
		return err
	}
	s.broadcast(who.roomID, msgAnswerRevealed, answerRevealedPayload{
		RoundNumber:    reveal.Round.RoundNumber,
		Answer:         itemView{ID: reveal.Answer.ID, Name: reveal.Answer.Name},
		Tallies:        reveal.Tallies,
		CorrectUserIDs: reveal.Correct,
		Leaderboard:    board,
	})
	s.broadcastRoomState(ctx, who.roomID)
	return nil
}

func (s *Server) nextRound(ctx context.Context, who actor, _ json.RawMessage) error {
	round, err := s.engine.AdvanceToNextRound(ctx, who.roomID)
	if err != nil {
		return err
	}
	if round == nil {
		err = s.finishGame(ctx, who.roomID)
	} else {
		err = s.announceRound(ctx, who.roomID, round)
	}
	if err != nil {
		return err
	}
	s.broadcastRoomState(ctx, who.roomID)
	return nil
}

// skipStage forces whatever the next step of the current phase is.
func (s *Server) skipStage(ctx context.Context, who actor, raw json.RawMessage) error {
	state, err := s.engine.InitializeRoomState(ctx, who.roomID)
	if err != nil {
		return err
	}
	switch state.Room.Status {
	case game.RoomSubmitting:
		if err := s.beginGuessing(ctx, who.roomID); err != nil {
			return err
		}
		s.broadcastRoomState(ctx, who.roomID)
		return nil
	case game.RoomGuessing, game.RoomLightning:
	default:
		return game.ErrWrongPhase
	}
	if state.CurrentRound == nil {
		return s.resumeRounds(ctx, who.roomID)
	}
	switch state.CurrentRound.Status {
	case game.RoundActive:
		return s.revealVotes(ctx, who, raw)
	case game.RoundVoting:
		return s.revealAnswer(ctx, who, raw)
	case game.RoundRevealed:
		return s.nextRound(ctx, who, raw)
	}
	return game.ErrWrongPhase
}

// resumeRounds gets a guessing room with no open round moving again.
func (s *Server) resumeRounds(ctx context.Context, roomID uint) error {
	round, err := s.engine.ResumeRounds(ctx, roomID)
	if err != nil {
		return err
	}
	log.Printf("rounds resumed room_id=%d", roomID)
	if round == nil {
		err = s.finishGame(ctx, roomID)
	} else {
		err = s.announceRound(ctx, roomID, round)
	}
	if err != nil {
		return err
	}
	s.broadcastRoomState(ctx, roomID)
	return nil
}

func (s *Server) announceRound(ctx context.Context, roomID uint, round *game.Round) error {
	payload, err := s.roundPayload(ctx, roomID, round)
	if err != nil {
		return err
	}
	log.Printf("round started room_id=%d round=%d phase=%s", roomID, round.RoundNumber, payload.Phase)
	s.recordEvent(ctx, game.Event{
		RoomID:      roomID,
		RoundNumber: round.RoundNumber,
		Type:        "round_started",
		Payload:     map[string]any{"itemId": round.GuessItemID, "phase": payload.Phase},
	})
	s.broadcast(roomID, msgRoundStarted, payload)
	return nil
}

func (s *Server) roundPayload(ctx context.Context, roomID uint, round *game.Round) (*roundStartedPayload, error) {
	view, err := s.engine.DescribeRound(ctx, roomID, round)
	if err != nil {
		return nil, fmt.Errorf("describe round: %w", err)
	}
	return &roundStartedPayload{
		RoundNumber:     round.RoundNumber,
		Associations:    view.Associations,
		Options:         itemViews(view.Options),
		EligibleUserIDs: view.Eligible,
		Phase:           phaseTag(view.Phase),
		Status:          string(round.Status),
	}, nil
}

// phaseTag names a queue the way clients see it.
func phaseTag(phase game.QueuePhase) string {
	if phase == game.PhaseLightning {
		return string(game.RoomLightning)
	}
	return string(game.RoomGuessing)
}

func (s *Server) finishGame(ctx context.Context, roomID uint) error {
	board, err := s.engine.Leaderboard(ctx, roomID)
	if err != nil {
		return err
	}
	log.Printf("game finished room_id=%d players=%d", roomID, len(board))
	s.recordEvent(ctx, game.Event{
		RoomID:  roomID,
		Type:    "game_finished",
		Payload: map[string]any{"leaderboard": board},
	})
	s.broadcast(roomID, msgGameFinished, gameFinishedPayload{Leaderboard: board})
	return nil
}
