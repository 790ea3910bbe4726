package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"association-party/internal/game"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxCodeAttempts = 50

// Store is a game.Store backed by a relational database through GORM.
type Store struct {
	db   *gorm.DB
	rand game.Rand
}

func NewStore(conn *gorm.DB, r game.Rand) *Store {
	if r == nil {
		r = game.NewRand()
	}
	return &Store{db: conn, rand: r}
}

func now() time.Time {
	return time.Now().UTC()
}

func (s *Store) CreateRoom(ctx context.Context, hostNickname string) (*game.Room, *game.User, error) {
	var room Room
	var host User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := s.freeCode(tx)
		if err != nil {
			return err
		}
		created := now()
		room = Room{Code: code, Status: string(game.RoomLobby), CreatedAt: created, UpdatedAt: created}
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		host = User{
			RoomID:      room.ID,
			Nickname:    hostNickname,
			NicknameKey: game.NicknameKey(hostNickname),
			IsHost:      true,
			JoinedAt:    created,
		}
		if err := tx.Create(&host).Error; err != nil {
			return err
		}
		room.HostID = &host.ID
		return tx.Model(&room).Update("host_id", host.ID).Error
	})
	if err != nil {
		return nil, nil, translate(err)
	}
	return toRoom(room), toUser(host), nil
}

func (s *Store) freeCode(tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := game.NewRoomCode(s.rand)
		var count int64
		err := tx.Model(&Room{}).
			Where("code = ? AND status <> ?", code, string(game.RoomFinished)).
			Count(&count).Error
		if err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", errors.New("no free room code")
}

func (s *Store) RoomByID(ctx context.Context, id uint) (*game.Room, error) {
	var room Room
	if err := s.db.WithContext(ctx).First(&room, id).Error; err != nil {
		return nil, translate(err)
	}
	return toRoom(room), nil
}

// RoomByCode prefers a live room when a finished one shares the code.
func (s *Store) RoomByCode(ctx context.Context, code string) (*game.Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var room Room
	err := s.db.WithContext(ctx).
		Where("code = ?", code).
		Order(clauseLiveFirst).
		Order("id DESC").
		First(&room).Error
	if err != nil {
		return nil, translate(err)
	}
	return toRoom(room), nil
}

var clauseLiveFirst = fmt.Sprintf("CASE WHEN status = '%s' THEN 1 ELSE 0 END", game.RoomFinished)

func (s *Store) UpdateRoomStatus(ctx context.Context, id uint, status game.RoomStatus) error {
	result := s.db.WithContext(ctx).Model(&Room{}).Where("id = ?", id).
		Updates(map[string]any{"status": string(status), "updated_at": now()})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return game.ErrNotFound
	}
	return nil
}

func (s *Store) SetRoomStatusIf(ctx context.Context, id uint, from, to game.RoomStatus) (bool, error) {
	result := s.db.WithContext(ctx).Model(&Room{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]any{"status": string(to), "updated_at": now()})
	if result.Error != nil {
		return false, translate(result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}
	if _, err := s.RoomByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) CreateUser(ctx context.Context, nickname string, roomID uint) (*game.User, error) {
	user := User{
		RoomID:      roomID,
		Nickname:    nickname,
		NicknameKey: game.NicknameKey(nickname),
		JoinedAt:    now(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The row lock orders this insert against SetRoomStatusIf on the room.
		var room Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, roomID).Error; err != nil {
			return err
		}
		if room.Status != string(game.RoomLobby) {
			return game.ErrRoomClosed
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return toUser(user), nil
}

func (s *Store) UserByID(ctx context.Context, id uint) (*game.User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return toUser(user), nil
}

func (s *Store) UsersByRoom(ctx context.Context, roomID uint) ([]game.User, error) {
	var rows []User
	if err := s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	users := make([]game.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, *toUser(row))
	}
	return users, nil
}

func (s *Store) AddUserScore(ctx context.Context, id uint, delta int) error {
	result := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).
		UpdateColumn("score", gorm.Expr("score + ?", delta))
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return game.ErrNotFound
	}
	return nil
}

func (s *Store) CreateGuessItems(ctx context.Context, roomID uint, names []string) ([]game.GuessItem, error) {
	if len(names) == 0 {
		return []game.GuessItem{}, nil
	}
	rows := make([]GuessItem, 0, len(names))
	for i, name := range names {
		rows = append(rows, GuessItem{RoomID: roomID, Name: name, OrderIndex: i})
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, translate(err)
	}
	items := make([]game.GuessItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toGuessItem(row))
	}
	return items, nil
}

func (s *Store) DeleteGuessItems(ctx context.Context, roomID uint) error {
	err := s.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&GuessItem{}).Error
	return translate(err)
}

func (s *Store) GuessItemsByRoom(ctx context.Context, roomID uint) ([]game.GuessItem, error) {
	var rows []GuessItem
	if err := s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("order_index").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	items := make([]game.GuessItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toGuessItem(row))
	}
	return items, nil
}

func (s *Store) GuessItemByID(ctx context.Context, id uint) (*game.GuessItem, error) {
	var row GuessItem
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, translate(err)
	}
	item := toGuessItem(row)
	return &item, nil
}

func (s *Store) CreateAssociation(ctx context.Context, userID, itemID uint, value string) (*game.Association, error) {
	var item GuessItem
	if err := s.db.WithContext(ctx).First(&item, itemID).Error; err != nil {
		return nil, translate(err)
	}
	row := Association{
		RoomID:      item.RoomID,
		UserID:      userID,
		GuessItemID: itemID,
		Value:       value,
		SubmittedAt: now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, translate(err)
	}
	association := toAssociation(row)
	return &association, nil
}

func (s *Store) AssociationsByRoom(ctx context.Context, roomID uint) ([]game.Association, error) {
	return s.associations(ctx, "room_id = ?", roomID)
}

func (s *Store) AssociationsByItem(ctx context.Context, itemID uint) ([]game.Association, error) {
	return s.associations(ctx, "guess_item_id = ?", itemID)
}

func (s *Store) associations(ctx context.Context, query string, arg uint) ([]game.Association, error) {
	var rows []Association
	if err := s.db.WithContext(ctx).Where(query, arg).Order("id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]game.Association, 0, len(rows))
	for _, row := range rows {
		out = append(out, toAssociation(row))
	}
	return out, nil
}

func (s *Store) AssociationByUserAndItem(ctx context.Context, userID, itemID uint) (*game.Association, error) {
	var row Association
	err := s.db.WithContext(ctx).Where("user_id = ? AND guess_item_id = ?", userID, itemID).First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	association := toAssociation(row)
	return &association, nil
}

func (s *Store) SetAssignments(ctx context.Context, roomID uint, assignments map[uint]uint) error {
	rows := make([]Assignment, 0, len(assignments))
	for userID, itemID := range assignments {
		rows = append(rows, Assignment{RoomID: roomID, UserID: userID, GuessItemID: itemID})
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&Assignment{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	return translate(err)
}

func (s *Store) AssignmentByUser(ctx context.Context, roomID, userID uint) (uint, error) {
	var row Assignment
	err := s.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).First(&row).Error
	if err != nil {
		return 0, translate(err)
	}
	return row.GuessItemID, nil
}

func (s *Store) AssignmentsByRoom(ctx context.Context, roomID uint) (map[uint]uint, error) {
	var rows []Assignment
	if err := s.db.WithContext(ctx).Where("room_id = ?", roomID).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make(map[uint]uint, len(rows))
	for _, row := range rows {
		out[row.UserID] = row.GuessItemID
	}
	return out, nil
}

func (s *Store) CreateGuess(ctx context.Context, userID, itemID, guessedItemID uint, roundNumber int) (*game.Guess, error) {
	var item GuessItem
	if err := s.db.WithContext(ctx).First(&item, itemID).Error; err != nil {
		return nil, translate(err)
	}
	row := Guess{
		RoomID:        item.RoomID,
		UserID:        userID,
		GuessItemID:   itemID,
		GuessedItemID: guessedItemID,
		RoundNumber:   roundNumber,
		SubmittedAt:   now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, translate(err)
	}
	guess := toGuess(row)
	return &guess, nil
}

func (s *Store) GuessesByRound(ctx context.Context, roomID uint, roundNumber int) ([]game.Guess, error) {
	var rows []Guess
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND round_number = ?", roomID, roundNumber).
		Order("id").Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	return toGuesses(rows), nil
}

func (s *Store) GuessesByRoom(ctx context.Context, roomID uint) ([]game.Guess, error) {
	var rows []Guess
	if err := s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return toGuesses(rows), nil
}

func (s *Store) GuessByUserAndRound(ctx context.Context, userID uint, roundNumber int) (*game.Guess, error) {
	var row Guess
	err := s.db.WithContext(ctx).Where("user_id = ? AND round_number = ?", userID, roundNumber).First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	guess := toGuess(row)
	return &guess, nil
}

// CreateRound refuses to open a round while another one in the room is not
// completed. The (room, number) unique index catches concurrent creators.
func (s *Store) CreateRound(ctx context.Context, roomID, itemID uint, roundNumber int) (*game.Round, error) {
	var row Round
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		err := tx.Model(&Round{}).
			Where("room_id = ? AND status <> ?", roomID, string(game.RoundCompleted)).
			Count(&open).Error
		if err != nil {
			return err
		}
		if open > 0 {
			return game.ErrDuplicate
		}
		created := now()
		row = Round{
			RoomID:      roomID,
			RoundNumber: roundNumber,
			GuessItemID: itemID,
			Status:      string(game.RoundActive),
			CreatedAt:   created,
			UpdatedAt:   created,
		}
		return tx.Create(&row).Error
	})
	if errors.Is(err, game.ErrDuplicate) {
		return nil, err
	}
	if err != nil {
		return nil, translate(err)
	}
	return toRound(row), nil
}

func (s *Store) CurrentRound(ctx context.Context, roomID uint) (*game.Round, error) {
	var row Round
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND status <> ?", roomID, string(game.RoundCompleted)).
		Order("round_number DESC").
		First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return toRound(row), nil
}

func (s *Store) LatestRoundNumber(ctx context.Context, roomID uint) (int, error) {
	var latest *int
	err := s.db.WithContext(ctx).Model(&Round{}).
		Where("room_id = ?", roomID).
		Select("MAX(round_number)").
		Scan(&latest).Error
	if err != nil {
		return 0, translate(err)
	}
	if latest == nil {
		return 0, nil
	}
	return *latest, nil
}

func (s *Store) UpdateRoundStatus(ctx context.Context, id uint, status game.RoundStatus) error {
	result := s.db.WithContext(ctx).Model(&Round{}).Where("id = ?", id).Updates(roundStatusColumns(status))
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return game.ErrNotFound
	}
	return nil
}

func (s *Store) SetRoundStatusIf(ctx context.Context, id uint, from, to game.RoundStatus) (bool, error) {
	result := s.db.WithContext(ctx).Model(&Round{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(roundStatusColumns(to))
	if result.Error != nil {
		return false, translate(result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&Round{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, translate(err)
	}
	if count == 0 {
		return false, game.ErrNotFound
	}
	return false, nil
}

func roundStatusColumns(status game.RoundStatus) map[string]any {
	at := now()
	columns := map[string]any{"status": string(status), "updated_at": at}
	if status == game.RoundRevealed {
		columns["revealed_at"] = at
	}
	return columns
}

func (s *Store) SetRoundOptions(ctx context.Context, roomID uint, roundNumber int, itemIDs []uint) error {
	encoded, err := json.Marshal(itemIDs)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	row := RoundOption{
		RoomID:      roomID,
		RoundNumber: roundNumber,
		ItemIDs:     datatypes.JSON(encoded),
		CreatedAt:   now(),
	}
	return translate(s.db.WithContext(ctx).Create(&row).Error)
}

func (s *Store) RoundOptions(ctx context.Context, roomID uint, roundNumber int) ([]uint, error) {
	var row RoundOption
	err := s.db.WithContext(ctx).Where("room_id = ? AND round_number = ?", roomID, roundNumber).First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	var ids []uint
	if err := json.Unmarshal(row.ItemIDs, &ids); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return ids, nil
}

func (s *Store) SetRoundQueue(ctx context.Context, roomID uint, phase game.QueuePhase, itemIDs []uint) error {
	rows := make([]QueueEntry, 0, len(itemIDs))
	for i, id := range itemIDs {
		rows = append(rows, QueueEntry{RoomID: roomID, Phase: string(phase), Position: i, GuessItemID: id})
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ? AND phase = ?", roomID, string(phase)).Delete(&QueueEntry{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	return translate(err)
}

func (s *Store) NextQueued(ctx context.Context, roomID uint, phase game.QueuePhase) (uint, error) {
	var row QueueEntry
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND phase = ? AND played = ?", roomID, string(phase), false).
		Order("position").
		First(&row).Error
	if err != nil {
		return 0, translate(err)
	}
	return row.GuessItemID, nil
}

func (s *Store) MarkQueuedPlayed(ctx context.Context, roomID uint, phase game.QueuePhase, itemID uint) error {
	result := s.db.WithContext(ctx).Model(&QueueEntry{}).
		Where("room_id = ? AND phase = ? AND guess_item_id = ? AND played = ?", roomID, string(phase), itemID, false).
		Update("played", true)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return game.ErrNotFound
	}
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, event game.Event) error {
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	created := event.CreatedAt
	if created.IsZero() {
		created = now()
	}
	row := Event{
		RoomID:      event.RoomID,
		RoundNumber: event.RoundNumber,
		Type:        event.Type,
		Payload:     datatypes.JSON(encoded),
		CreatedAt:   created,
	}
	if event.UserID != 0 {
		userID := event.UserID
		row.UserID = &userID
	}
	return translate(s.db.WithContext(ctx).Create(&row).Error)
}

func toRoom(row Room) *game.Room {
	room := &game.Room{
		ID:        row.ID,
		Code:      row.Code,
		Status:    game.RoomStatus(row.Status),
		CreatedAt: row.CreatedAt,
	}
	if row.HostID != nil {
		room.HostID = *row.HostID
	}
	return room
}

func toUser(row User) *game.User {
	return &game.User{
		ID:       row.ID,
		Nickname: row.Nickname,
		RoomID:   row.RoomID,
		Score:    row.Score,
		IsHost:   row.IsHost,
		JoinedAt: row.JoinedAt,
	}
}

func toGuessItem(row GuessItem) game.GuessItem {
	return game.GuessItem{ID: row.ID, RoomID: row.RoomID, Name: row.Name, OrderIndex: row.OrderIndex}
}

func toAssociation(row Association) game.Association {
	return game.Association{
		ID:          row.ID,
		UserID:      row.UserID,
		GuessItemID: row.GuessItemID,
		Value:       row.Value,
		SubmittedAt: row.SubmittedAt,
	}
}

func toGuess(row Guess) game.Guess {
	return game.Guess{
		ID:            row.ID,
		UserID:        row.UserID,
		GuessItemID:   row.GuessItemID,
		GuessedItemID: row.GuessedItemID,
		RoundNumber:   row.RoundNumber,
		SubmittedAt:   row.SubmittedAt,
	}
}

func toGuesses(rows []Guess) []game.Guess {
	out := make([]game.Guess, 0, len(rows))
	for _, row := range rows {
		out = append(out, toGuess(row))
	}
	return out
}

func toRound(row Round) *game.Round {
	return &game.Round{
		ID:          row.ID,
		RoomID:      row.RoomID,
		GuessItemID: row.GuessItemID,
		RoundNumber: row.RoundNumber,
		Status:      game.RoundStatus(row.Status),
		RevealedAt:  row.RevealedAt,
	}
}

var _ game.Store = (*Store)(nil)
