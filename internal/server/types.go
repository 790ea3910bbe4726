package server

import (
	"encoding/json"

	"association-party/internal/game"
)

// Inbound message types.
const (
	msgStartGame         = "start_game"
	msgSubmitAssociation = "submit_association"
	msgSubmitGuess       = "submit_guess"
	msgRevealVotes       = "reveal_votes"
	msgRevealAnswer      = "reveal_answer"
	msgNextRound         = "next_round"
	msgSkipStage         = "skip_stage"
	msgCancelGame        = "cancel_game"
)

// Outbound message types.
const (
	msgRoomState            = "room_state"
	msgAssignment           = "assignment"
	msgAssociationSubmitted = "association_submitted"
	msgRoundStarted         = "round_started"
	msgGuessSubmitted       = "guess_submitted"
	msgVotesRevealed        = "votes_revealed"
	msgAnswerRevealed       = "answer_revealed"
	msgGameStarted          = "game_started"
	msgGameFinished         = "game_finished"
	msgGameCancelled        = "game_cancelled"
	msgError                = "error"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type startGamePayload struct {
	Items []string `json:"items"`
}

type associationPayload struct {
	Value string `json:"value"`
}

type guessPayload struct {
	ItemID uint `json:"itemId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type itemView struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func itemViews(items []game.GuessItem) []itemView {
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, itemView{ID: item.ID, Name: item.Name})
	}
	return views
}

type assignmentPayload struct {
	ItemID   uint   `json:"itemId"`
	ItemName string `json:"itemName"`
}

type gameStartedPayload struct {
	ItemCount   int `json:"itemCount"`
	PlayerCount int `json:"playerCount"`
}

type associationSubmittedPayload struct {
	UserID         uint `json:"userId"`
	SubmittedCount int  `json:"submittedCount"`
	AssignedCount  int  `json:"assignedCount"`
}

type roundStartedPayload struct {
	RoundNumber     int        `json:"roundNumber"`
	Associations    []string   `json:"associations"`
	Options         []itemView `json:"options"`
	EligibleUserIDs []uint     `json:"eligibleUserIds"`
	Phase           string     `json:"phase"`
	Status          string     `json:"status"`
}

type guessSubmittedPayload struct {
	UserID        uint `json:"userId"`
	RoundNumber   int  `json:"roundNumber"`
	GuessCount    int  `json:"guessCount"`
	EligibleCount int  `json:"eligibleCount"`
}

type votesRevealedPayload struct {
	RoundNumber int              `json:"roundNumber"`
	Tallies     []game.VoteTally `json:"tallies"`
}

type answerRevealedPayload struct {
	RoundNumber    int                     `json:"roundNumber"`
	Answer         itemView                `json:"answer"`
	Tallies        []game.VoteTally        `json:"tallies"`
	CorrectUserIDs []uint                  `json:"correctUserIds"`
	Leaderboard    []game.LeaderboardEntry `json:"leaderboard"`
}

type gameFinishedPayload struct {
	Leaderboard []game.LeaderboardEntry `json:"leaderboard"`
}

type joinResponse struct {
	RoomID   uint   `json:"roomId"`
	Code     string `json:"code"`
	UserID   uint   `json:"userId"`
	Nickname string `json:"nickname"`
	IsHost   bool   `json:"isHost"`
}
