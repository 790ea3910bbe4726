package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"association-party/internal/config"
	"association-party/internal/game"
)

// openTestStore connects to TEST_DATABASE_URL and skips when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("skipping test; TEST_DATABASE_URL not set")
	}
	cfg := config.Default()
	cfg.DatabaseURL = dsn
	if driver := os.Getenv("TEST_DATABASE_DRIVER"); driver != "" {
		cfg.DatabaseDriver = driver
	}
	conn, err := Open(cfg)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(conn, game.NewRand())
}

func TestStoreDuplicateNickname(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	room, _, err := store.CreateRoom(ctx, "Host")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := store.CreateUser(ctx, "Ada", room.ID); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.CreateUser(ctx, "ADA", room.ID); !errors.Is(err, game.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	found, err := store.RoomByCode(ctx, room.Code)
	if err != nil || found.ID != room.ID {
		t.Fatalf("lookup by code: %v %+v", err, found)
	}
}

func TestStoreCreateUserRejectsStartedRoom(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	room, _, err := store.CreateRoom(ctx, "Host")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if err := store.UpdateRoomStatus(ctx, room.ID, game.RoomSubmitting); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if _, err := store.CreateUser(ctx, "Late", room.ID); !errors.Is(err, game.ErrRoomClosed) {
		t.Fatalf("expected ErrRoomClosed, got %v", err)
	}
	items, err := store.CreateGuessItems(ctx, room.ID, []string{"Pizza", "Beach"})
	if err != nil || len(items) != 2 {
		t.Fatalf("create items: %v %v", err, items)
	}
	if err := store.DeleteGuessItems(ctx, room.ID); err != nil {
		t.Fatalf("delete items: %v", err)
	}
	if items, err := store.GuessItemsByRoom(ctx, room.ID); err != nil || len(items) != 0 {
		t.Fatalf("expected no items, got %v %v", err, items)
	}
}

func TestStoreSetRoomStatusIfSingleWinner(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	room, _, err := store.CreateRoom(ctx, "Host")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if err := store.UpdateRoomStatus(ctx, room.ID, game.RoomSubmitting); err != nil {
		t.Fatalf("update status: %v", err)
	}

	var mu sync.Mutex
	winners := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.SetRoomStatusIf(ctx, room.ID, game.RoomSubmitting, game.RoomGuessing)
			if err != nil {
				t.Errorf("set status: %v", err)
				return
			}
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected one winner, got %d", winners)
	}
}

func TestStorePlaysARound(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	engine := game.NewEngine(store, game.WithRand(game.NewSeededRand(7, 8)))
	room, _, err := engine.CreateRoom(ctx, "Host")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	var players []uint
	for i := 0; i < 4; i++ {
		_, user, err := engine.JoinRoom(ctx, room.Code, fmt.Sprintf("Player %d", i+1))
		if err != nil {
			t.Fatalf("join: %v", err)
		}
		players = append(players, user.ID)
	}
	if _, _, err := engine.StartGame(ctx, room.ID, []string{"Pizza", "Beach", "Guitar", "Volcano"}); err != nil {
		t.Fatalf("start game: %v", err)
	}
	var last *game.AssociationResult
	for _, id := range players {
		if last, err = engine.SubmitAssociation(ctx, room.ID, id, "word"); err != nil {
			t.Fatalf("submit association: %v", err)
		}
	}
	if !last.AllSubmitted {
		t.Fatalf("expected all submitted")
	}
	round, err := engine.BeginGuessing(ctx, room.ID)
	if err != nil || round == nil {
		t.Fatalf("begin guessing: %v", err)
	}
	view, err := engine.DescribeRound(ctx, room.ID, round)
	if err != nil {
		t.Fatalf("describe round: %v", err)
	}
	for _, id := range view.Eligible {
		if _, err := engine.SubmitGuess(ctx, room.ID, id, round.GuessItemID); err != nil {
			t.Fatalf("guess: %v", err)
		}
	}
	if _, _, err := engine.RevealVotes(ctx, room.ID); err != nil {
		t.Fatalf("reveal votes: %v", err)
	}
	reveal, err := engine.RevealAnswer(ctx, room.ID)
	if err != nil {
		t.Fatalf("reveal answer: %v", err)
	}
	if len(reveal.Correct) != len(view.Eligible) {
		t.Fatalf("expected %d correct, got %v", len(view.Eligible), reveal.Correct)
	}
	if _, err := engine.RevealAnswer(ctx, room.ID); !errors.Is(err, game.ErrWrongPhase) {
		t.Fatalf("expected second reveal to be rejected, got %v", err)
	}
	board, err := engine.Leaderboard(ctx, room.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if board[0].Score != game.PointsPerCorrect {
		t.Fatalf("unexpected leaderboard %+v", board)
	}
}
