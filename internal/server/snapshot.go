package server

import (
	"context"
	"slices"

	"association-party/internal/game"
)

type roomView struct {
	ID     uint   `json:"id"`
	Code   string `json:"code"`
	Status string `json:"status"`
}

type playerView struct {
	ID        uint   `json:"id"`
	Nickname  string `json:"nickname"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

type roundSummary struct {
	Number        int    `json:"number"`
	Status        string `json:"status"`
	Phase         string `json:"phase"`
	GuessCount    int    `json:"guessCount"`
	EligibleCount int    `json:"eligibleCount"`
}

// roomStatePayload is the public view of a room. It never carries item
// names, assignments or who wrote which word.
type roomStatePayload struct {
	Room             roomView      `json:"room"`
	HostID           uint          `json:"hostId"`
	Players          []playerView  `json:"players"`
	ItemCount        int           `json:"itemCount"`
	SubmittedCount   int           `json:"submittedCount"`
	AssignedCount    int           `json:"assignedCount"`
	CurrentRound     *roundSummary `json:"currentRound"`
	ConnectedUserIDs []uint        `json:"connectedUserIds"`
}

func (s *Server) publicSnapshot(ctx context.Context, roomID uint) (*roomStatePayload, bool, error) {
	state, ok, err := s.engine.GetRoomState(ctx, roomID)
	if err != nil || !ok {
		return nil, ok, err
	}
	connected := s.hub.Connected(roomID)
	players := make([]playerView, 0, len(state.Users))
	for _, player := range state.Players() {
		players = append(players, playerView{
			ID:        player.ID,
			Nickname:  player.Nickname,
			Score:     player.Score,
			Connected: slices.Contains(connected, player.ID),
		})
	}
	submitted, assigned, err := s.engine.SubmissionProgress(ctx, roomID)
	if err != nil {
		return nil, false, err
	}
	payload := &roomStatePayload{
		Room:             roomView{ID: state.Room.ID, Code: state.Room.Code, Status: string(state.Room.Status)},
		HostID:           state.Room.HostID,
		Players:          players,
		ItemCount:        len(state.Items),
		SubmittedCount:   submitted,
		AssignedCount:    assigned,
		ConnectedUserIDs: connected,
	}
	if round := state.CurrentRound; round != nil {
		eligible, err := s.engine.EligibleGuessers(ctx, roomID, round)
		if err != nil {
			return nil, false, err
		}
		guesses := 0
		for _, guess := range state.Guesses {
			if guess.RoundNumber == round.RoundNumber {
				guesses++
			}
		}
		phase := game.PhaseStandard
		if state.Room.Status == game.RoomLightning {
			phase = game.PhaseLightning
		}
		payload.CurrentRound = &roundSummary{
			Number:        round.RoundNumber,
			Status:        string(round.Status),
			Phase:         phaseTag(phase),
			GuessCount:    guesses,
			EligibleCount: len(eligible),
		}
	}
	return payload, true, nil
}
