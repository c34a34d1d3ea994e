package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// User represents a registered player
type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Avatar       string    `db:"avatar" json:"avatar"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// QueueEntry represents a player waiting for a match. One row per player,
// keyed by user id; created when the player requests matchmaking and deleted
// when paired or withdrawn.
type QueueEntry struct {
	UserID   string    `db:"user_id" json:"user_id"`
	Username string    `db:"username" json:"username"`
	Avatar   string    `db:"avatar" json:"avatar"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// PlayerState is a single player's in-match state, embedded in the match's
// player_states JSONB column. The two playing clients mutate it during the
// match; the settlement path only reads it.
type PlayerState struct {
	Username   string     `json:"username"`
	Avatar     string     `json:"avatar"`
	Progress   float64    `json:"progress"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// PlayerStates maps user id to that player's state.
type PlayerStates map[string]PlayerState

// Value implements driver.Valuer for JSONB storage.
func (p PlayerStates) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (p *PlayerStates) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = PlayerStates{}
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported player_states type %T", src)
	}
}

// Match represents a created pairing of two players. winner_id stays NULL and
// completed_at unset until settlement; a settled draw has completed_at set,
// is_draw true and winner_id still NULL.
type Match struct {
	ID              string         `db:"id" json:"id"`
	Player1ID       string         `db:"player1_id" json:"player1_id"`
	Player2ID       string         `db:"player2_id" json:"player2_id"`
	PlayerStates    PlayerStates   `db:"player_states" json:"player_states"`
	PuzzleID        int            `db:"puzzle_id" json:"puzzle_id"`
	CreatedAt       sql.NullTime   `db:"created_at" json:"created_at"`
	StartAt         time.Time      `db:"start_at" json:"start_at"`
	MaxDurationSecs int            `db:"max_duration_secs" json:"max_duration_secs"`
	WinnerID        sql.NullString `db:"winner_id" json:"winner_id,omitempty"`
	IsDraw          bool           `db:"is_draw" json:"is_draw"`
	CompletedAt     sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
}

// Players returns the stored player order.
func (m *Match) Players() []string {
	return []string{m.Player1ID, m.Player2ID}
}

// Settled reports whether an outcome has been written onto the match.
func (m *Match) Settled() bool {
	return m.CompletedAt.Valid
}

// MatchHistoryEntry is an immutable per-player record of one completed match.
// Exactly two entries exist per settled match, each the other's mirror.
type MatchHistoryEntry struct {
	ID                 int64        `db:"id" json:"id"`
	MatchID            string       `db:"match_id" json:"match_id"`
	PlayerID           string       `db:"player_id" json:"player_id"`
	OpponentID         string       `db:"opponent_id" json:"opponent_id"`
	OpponentUsername   string       `db:"opponent_username" json:"opponent_username"`
	PuzzleID           int          `db:"puzzle_id" json:"puzzle_id"`
	Result             string       `db:"result" json:"result"`
	PlayerProgress     float64      `db:"player_progress" json:"player_progress"`
	OpponentProgress   float64      `db:"opponent_progress" json:"opponent_progress"`
	PlayerFinishedAt   sql.NullTime `db:"player_finished_at" json:"player_finished_at,omitempty"`
	OpponentFinishedAt sql.NullTime `db:"opponent_finished_at" json:"opponent_finished_at,omitempty"`
	MatchDurationMs    int64        `db:"match_duration_ms" json:"match_duration_ms"`
	CompletedAt        time.Time    `db:"completed_at" json:"completed_at"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
}

// Match outcome results
const (
	ResultWin  = "win"
	ResultLoss = "loss"
	ResultDraw = "draw"
)

// SettlementTicket marks a match as settled. Whichever settlement path
// inserts the row first owns the settlement; the other path observes the
// ticket and does nothing.
type SettlementTicket struct {
	MatchID   string    `db:"match_id" json:"match_id"`
	SettledBy string    `db:"settled_by" json:"settled_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Device is a registered push target. Nil preference columns mean the
// preference was never set and default to enabled.
type Device struct {
	ID                int64        `db:"id" json:"id"`
	UserID            string       `db:"user_id" json:"user_id"`
	PushToken         string       `db:"push_token" json:"push_token"`
	BackgroundEnabled sql.NullBool `db:"background_enabled" json:"background_enabled,omitempty"`
	ForegroundEnabled sql.NullBool `db:"foreground_enabled" json:"foreground_enabled,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updated_at"`
}
