package game

import "time"

type RoomStatus string

const (
	RoomLobby      RoomStatus = "lobby"
	RoomSubmitting RoomStatus = "submitting"
	RoomGuessing   RoomStatus = "guessing"
	RoomLightning  RoomStatus = "lightning"
	RoomFinished   RoomStatus = "finished"
)

type RoundStatus string

const (
	RoundActive    RoundStatus = "active"
	RoundVoting    RoundStatus = "voting"
	RoundRevealed  RoundStatus = "revealed"
	RoundCompleted RoundStatus = "completed"
)

// QueuePhase names one of the two per-room round queues.
type QueuePhase string

const (
	PhaseStandard  QueuePhase = "standard"
	PhaseLightning QueuePhase = "lightning"
)

const (
	MinPlayers         = 4
	MinItems           = 4
	LightningThreshold = 15
	StandardRoundCap   = 10
	OptionCount        = 4
	PointsPerCorrect   = 10
	MaxItemLength      = 50
	MaxAssociationLen  = 30
	MaxNicknameLength  = 20
	RoomCodeLength     = 4
)

type Room struct {
	ID        uint
	Code      string
	HostID    uint
	Status    RoomStatus
	CreatedAt time.Time
}

type User struct {
	ID       uint
	Nickname string
	RoomID   uint
	Score    int
	IsHost   bool
	JoinedAt time.Time
}

type GuessItem struct {
	ID         uint
	RoomID     uint
	Name       string
	OrderIndex int
}

type Association struct {
	ID          uint
	UserID      uint
	GuessItemID uint
	Value       string
	SubmittedAt time.Time
}

type Guess struct {
	ID            uint
	UserID        uint
	GuessItemID   uint
	GuessedItemID uint
	RoundNumber   int
	SubmittedAt   time.Time
}

type Round struct {
	ID          uint
	RoomID      uint
	GuessItemID uint
	RoundNumber int
	Status      RoundStatus
	RevealedAt  *time.Time
}

// Event is an append-only audit record of something that happened in a room.
type Event struct {
	RoomID      uint
	RoundNumber int
	UserID      uint
	Type        string
	Payload     map[string]any
	CreatedAt   time.Time
}

type VoteTally struct {
	ItemID uint   `json:"itemId"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
}

type LeaderboardEntry struct {
	UserID   uint   `json:"userId"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

// RoomState is a consistent read of everything the engine knows about a room.
type RoomState struct {
	Room         Room
	Users        []User
	Items        []GuessItem
	CurrentRound *Round
	Associations []Association
	Guesses      []Guess
}

// Players returns the non-host users in join order.
func (s *RoomState) Players() []User {
	return playersOf(s.Users)
}

func (s *RoomState) Host() (User, bool) {
	for _, user := range s.Users {
		if user.IsHost {
			return user, true
		}
	}
	return User{}, false
}

func (s *RoomState) Item(id uint) (GuessItem, bool) {
	for _, item := range s.Items {
		if item.ID == id {
			return item, true
		}
	}
	return GuessItem{}, false
}

func playersOf(users []User) []User {
	players := make([]User, 0, len(users))
	for _, user := range users {
		if !user.IsHost {
			players = append(players, user)
		}
	}
	return players
}
