package db

import (
	"time"

	"gorm.io/datatypes"
)

type Room struct {
	ID        uint      `gorm:"primaryKey"`
	Code      string    `gorm:"size:8;not null;index"`
	HostID    *uint     `gorm:"index"`
	Status    string    `gorm:"size:32;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type User struct {
	ID     uint `gorm:"primaryKey"`
	RoomID uint `gorm:"not null;index;uniqueIndex:idx_users_room_nickname"`
	// NicknameKey is the case-folded nickname used for uniqueness.
	NicknameKey string    `gorm:"size:128;not null;uniqueIndex:idx_users_room_nickname"`
	Nickname    string    `gorm:"size:64;not null"`
	Score       int       `gorm:"not null;default:0"`
	IsHost      bool      `gorm:"not null;default:false"`
	JoinedAt    time.Time `gorm:"not null"`
}

type GuessItem struct {
	ID         uint   `gorm:"primaryKey"`
	RoomID     uint   `gorm:"not null;uniqueIndex:idx_guess_items_room_order"`
	Name       string `gorm:"size:64;not null"`
	OrderIndex int    `gorm:"not null;uniqueIndex:idx_guess_items_room_order"`
}

type Association struct {
	ID          uint      `gorm:"primaryKey"`
	RoomID      uint      `gorm:"not null;index"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_associations_user_item"`
	GuessItemID uint      `gorm:"not null;index;uniqueIndex:idx_associations_user_item"`
	Value       string    `gorm:"size:64;not null"`
	SubmittedAt time.Time `gorm:"not null"`
}

type Assignment struct {
	ID          uint `gorm:"primaryKey"`
	RoomID      uint `gorm:"not null;uniqueIndex:idx_assignments_room_user"`
	UserID      uint `gorm:"not null;uniqueIndex:idx_assignments_room_user"`
	GuessItemID uint `gorm:"not null"`
}

type Guess struct {
	ID            uint      `gorm:"primaryKey"`
	RoomID        uint      `gorm:"not null;index:idx_guesses_room_round"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_guesses_user_round"`
	GuessItemID   uint      `gorm:"not null"`
	GuessedItemID uint      `gorm:"not null"`
	RoundNumber   int       `gorm:"not null;uniqueIndex:idx_guesses_user_round;index:idx_guesses_room_round"`
	SubmittedAt   time.Time `gorm:"not null"`
}

type Round struct {
	ID          uint       `gorm:"primaryKey"`
	RoomID      uint       `gorm:"not null;index;uniqueIndex:idx_rounds_room_number"`
	RoundNumber int        `gorm:"not null;uniqueIndex:idx_rounds_room_number"`
	GuessItemID uint       `gorm:"not null"`
	Status      string     `gorm:"size:32;not null"`
	RevealedAt  *time.Time
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   time.Time  `gorm:"not null"`
}

type RoundOption struct {
	ID          uint           `gorm:"primaryKey"`
	RoomID      uint           `gorm:"not null;uniqueIndex:idx_round_options_room_round"`
	RoundNumber int            `gorm:"not null;uniqueIndex:idx_round_options_room_round"`
	ItemIDs     datatypes.JSON `gorm:"not null"`
	CreatedAt   time.Time      `gorm:"not null"`
}

type QueueEntry struct {
	ID          uint   `gorm:"primaryKey"`
	RoomID      uint   `gorm:"not null;uniqueIndex:idx_queue_entries_position"`
	Phase       string `gorm:"size:16;not null;uniqueIndex:idx_queue_entries_position"`
	Position    int    `gorm:"not null;uniqueIndex:idx_queue_entries_position"`
	GuessItemID uint   `gorm:"not null"`
	Played      bool   `gorm:"not null;default:false"`
}

type Event struct {
	ID          uint           `gorm:"primaryKey"`
	RoomID      uint           `gorm:"index;not null"`
	RoundNumber int            `gorm:"not null;default:0"`
	UserID      *uint          `gorm:"index"`
	Type        string         `gorm:"size:64;not null"`
	Payload     datatypes.JSON `gorm:"not null"`
	CreatedAt   time.Time      `gorm:"not null"`
}
