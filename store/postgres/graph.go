package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/famulus-ai/famulus/core"
)

// -------------------- RelationStore --------------------

// GetAccountByID implements core.RelationStore.
func (s *Store) GetAccountByID(ctx context.Context, id string) (*core.Account, error) {
	var (
		a          core.Account
		detailsRaw []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, username, email, details FROM accounts WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.Username, &a.Email, &detailsRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get account: %w", err)
	}
	if len(detailsRaw) > 0 {
		if err := json.Unmarshal(detailsRaw, &a.Details); err != nil {
			return nil, fmt.Errorf("postgres store: unmarshal account details: %w", err)
		}
	}
	if len(a.Details) == 0 {
		a.Details = nil
	}
	return &a, nil
}

// CreateAccount implements core.RelationStore.
func (s *Store) CreateAccount(ctx context.Context, account core.Account) error {
	if account.ID == "" {
		return fmt.Errorf("postgres store: account id is required")
	}
	details, err := json.Marshal(account.Details)
	if err != nil {
		return fmt.Errorf("postgres store: marshal account details: %w", err)
	}
	if account.Details == nil {
		details = []byte("{}")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO accounts (id, name, username, email, details)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		account.ID, account.Name, account.Username, account.Email, details)
	if err != nil {
		return fmt.Errorf("postgres store: create account: %w", err)
	}
	return nil
}

// GetRoom implements core.RelationStore.
func (s *Store) GetRoom(ctx context.Context, id string) (*core.Room, error) {
	var room core.Room
	err := s.pool.QueryRow(ctx, `SELECT id, created_at FROM rooms WHERE id = $1`, id).
		Scan(&room.ID, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get room: %w", err)
	}
	return &room, nil
}

// CreateRoom implements core.RelationStore.
func (s *Store) CreateRoom(ctx context.Context, id string) (string, error) {
	if id == "" {
		id = core.NewID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (id, created_at) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`, id, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("postgres store: create room: %w", err)
	}
	return id, nil
}

// RemoveRoom implements core.RelationStore. The room and its participant
// edges go in one transaction.
func (s *Store) RemoveRoom(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: remove room: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM participants WHERE room_id = $1`, id); err != nil {
		return fmt.Errorf("postgres store: remove room participants: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres store: remove room: %w", err)
	}
	return tx.Commit(ctx)
}

// AddParticipant implements core.RelationStore.
func (s *Store) AddParticipant(ctx context.Context, userID, roomID string) error {
	if userID == "" || roomID == "" {
		return fmt.Errorf("postgres store: participant requires user and room ids")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO participants (user_id, room_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, user_id) DO NOTHING`, userID, roomID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres store: add participant: %w", err)
	}
	return nil
}

// RemoveParticipant implements core.RelationStore.
func (s *Store) RemoveParticipant(ctx context.Context, userID, roomID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM participants WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	if err != nil {
		return fmt.Errorf("postgres store: remove participant: %w", err)
	}
	return nil
}

// GetParticipantsForAccount implements core.RelationStore.
func (s *Store) GetParticipantsForAccount(ctx context.Context, userID string) ([]core.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, room_id, state, joined_at FROM participants
		WHERE user_id = $1 ORDER BY room_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: participants for account: %w", err)
	}
	defer rows.Close()

	var out []core.Participant
	for rows.Next() {
		var p core.Participant
		if err := rows.Scan(&p.UserID, &p.RoomID, &p.State, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("postgres store: scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetParticipantsForRoom implements core.RelationStore.
func (s *Store) GetParticipantsForRoom(ctx context.Context, roomID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id FROM participants WHERE room_id = $1 ORDER BY user_id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: participants for room: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("postgres store: scan participant: %w", err)
		}
		out = append(out, userID)
	}
	return out, rows.Err()
}

// GetParticipantUserState implements core.RelationStore.
func (s *Store) GetParticipantUserState(ctx context.Context, roomID, userID string) (string, error) {
	var state string
	err := s.pool.QueryRow(ctx, `
		SELECT state FROM participants WHERE room_id = $1 AND user_id = $2`, roomID, userID).
		Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("postgres store: no participant %s in room %s", userID, roomID)
	}
	if err != nil {
		return "", fmt.Errorf("postgres store: participant state: %w", err)
	}
	return state, nil
}

// SetParticipantUserState implements core.RelationStore.
func (s *Store) SetParticipantUserState(ctx context.Context, roomID, userID, state string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE participants SET state = $3 WHERE room_id = $1 AND user_id = $2`,
		roomID, userID, state)
	if err != nil {
		return fmt.Errorf("postgres store: set participant state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: no participant %s in room %s", userID, roomID)
	}
	return nil
}

// GetRoomsForParticipant implements core.RelationStore.
func (s *Store) GetRoomsForParticipant(ctx context.Context, userID string) ([]string, error) {
	return s.roomsFor(ctx, []string{userID})
}

// GetRoomsForParticipants implements core.RelationStore.
func (s *Store) GetRoomsForParticipants(ctx context.Context, userIDs []string) ([]string, error) {
	return s.roomsFor(ctx, userIDs)
}

func (s *Store) roomsFor(ctx context.Context, userIDs []string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT room_id FROM participants WHERE user_id = ANY($1) ORDER BY room_id`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres store: rooms for participants: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var roomID string
		if err := rows.Scan(&roomID); err != nil {
			return nil, fmt.Errorf("postgres store: scan room: %w", err)
		}
		out = append(out, roomID)
	}
	return out, rows.Err()
}

// -------------------- GoalStore --------------------

// GetGoals implements core.GoalStore.
func (s *Store) GetGoals(ctx context.Context, q core.GoalQuery) ([]core.Goal, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, room_id, user_id, name, status, objectives, created_at
		FROM goals WHERE 1=1`)
	var args []any

	if q.RoomID != "" {
		args = append(args, q.RoomID)
		fmt.Fprintf(&sb, " AND room_id = $%d", len(args))
	}
	if q.UserID != "" {
		args = append(args, q.UserID)
		fmt.Fprintf(&sb, " AND user_id = $%d", len(args))
	}
	if q.OnlyInProgress {
		args = append(args, string(core.GoalInProgress))
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}
	sb.WriteString(" ORDER BY created_at DESC, id")
	if q.Count > 0 {
		args = append(args, q.Count)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var (
			g             core.Goal
			objectivesRaw []byte
		)
		if err := rows.Scan(&g.ID, &g.RoomID, &g.UserID, &g.Name, &g.Status, &objectivesRaw, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres store: scan goal: %w", err)
		}
		if err := json.Unmarshal(objectivesRaw, &g.Objectives); err != nil {
			return nil, fmt.Errorf("postgres store: unmarshal objectives: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// CreateGoal implements core.GoalStore.
func (s *Store) CreateGoal(ctx context.Context, goal core.Goal) error {
	if goal.ID == "" {
		return fmt.Errorf("postgres store: goal id is required")
	}
	objectives, err := json.Marshal(goal.Objectives)
	if err != nil {
		return fmt.Errorf("postgres store: marshal objectives: %w", err)
	}
	if goal.Objectives == nil {
		objectives = []byte("[]")
	}
	createdAt := goal.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO goals (id, room_id, user_id, name, status, objectives, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		goal.ID, goal.RoomID, goal.UserID, goal.Name, string(goal.Status), objectives, createdAt)
	if err != nil {
		return fmt.Errorf("postgres store: create goal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: goal %s already exists", goal.ID)
	}
	return nil
}

// UpdateGoal implements core.GoalStore.
func (s *Store) UpdateGoal(ctx context.Context, goal core.Goal) error {
	objectives, err := json.Marshal(goal.Objectives)
	if err != nil {
		return fmt.Errorf("postgres store: marshal objectives: %w", err)
	}
	if goal.Objectives == nil {
		objectives = []byte("[]")
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE goals SET name = $2, status = $3, objectives = $4 WHERE id = $1`,
		goal.ID, goal.Name, string(goal.Status), objectives)
	if err != nil {
		return fmt.Errorf("postgres store: update goal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: goal %s not found", goal.ID)
	}
	return nil
}

// UpdateGoalStatus implements core.GoalStore.
func (s *Store) UpdateGoalStatus(ctx context.Context, id string, status core.GoalStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE goals SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("postgres store: update goal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: goal %s not found", id)
	}
	return nil
}

// RemoveGoal implements core.GoalStore.
func (s *Store) RemoveGoal(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM goals WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres store: remove goal: %w", err)
	}
	return nil
}

// RemoveAllGoals implements core.GoalStore.
func (s *Store) RemoveAllGoals(ctx context.Context, roomID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM goals WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("postgres store: remove all goals: %w", err)
	}
	return nil
}
