package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/puzzlerush/backend/internal/database"
	"github.com/puzzlerush/backend/internal/models"
)

// Settlement paths recorded on the ticket.
const (
	settledByComplete = "complete"
	settledByRemoval  = "removal"
)

// SettlementResult is what the explicit completion path reports back.
type SettlementResult struct {
	MatchID        string `json:"match_id"`
	WinnerID       string `json:"winner_id,omitempty"`
	IsDraw         bool   `json:"is_draw"`
	AlreadySettled bool   `json:"already_settled"`
}

// CompleteMatch is the explicit settlement entry point. It is idempotent:
// a missing match or an already-written outcome both return success without
// producing new history. Otherwise the winner is resolved and the outcome,
// the settlement ticket and both history rows are written in one transaction.
func (s *Service) CompleteMatch(ctx context.Context, matchID string) (*SettlementResult, error) {
	var result *SettlementResult

	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var m models.Match
		err := tx.GetContext(ctx, &m,
			`SELECT id, player1_id, player2_id, player_states, puzzle_id,
			        created_at, start_at, max_duration_secs, winner_id, is_draw, completed_at
			 FROM matches WHERE id = $1 FOR UPDATE`, matchID)
		if errors.Is(err, sql.ErrNoRows) {
			// Already removed; settlement (if any) happened on the removal
			// path. Report whatever outcome was recorded.
			result = s.recordedOutcome(ctx, tx, matchID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read match: %w", err)
		}

		if r := settledResult(&m); r != nil {
			result = r
			return nil
		}

		// Claim the ticket before writing anything. Losing the claim means
		// another actor already settled this match from a snapshot while the
		// row lingered; writing history again would collide with the rows it
		// produced.
		claimed, err := claimTicket(ctx, tx, m.ID, settledByComplete)
		if err != nil {
			return fmt.Errorf("claim settlement ticket: %w", err)
		}
		if !claimed {
			result = s.recordedOutcome(ctx, tx, m.ID)
			return nil
		}

		outcome := ResolveWinner(m.ID, m.Players(), m.PlayerStates)
		completedAt := time.Now()

		var winner sql.NullString
		if outcome.WinnerID != "" {
			winner = sql.NullString{String: outcome.WinnerID, Valid: true}
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE matches SET winner_id = $1, is_draw = $2, completed_at = $3 WHERE id = $4`,
			winner, outcome.IsDraw, completedAt, m.ID)
		if err != nil {
			return fmt.Errorf("write outcome: %w", err)
		}

		if err := insertHistory(ctx, tx, buildHistoryEntries(&m, outcome, completedAt)); err != nil {
			return fmt.Errorf("write history: %w", err)
		}

		result = &SettlementResult{MatchID: m.ID, WinnerID: outcome.WinnerID, IsDraw: outcome.IsDraw}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[SETTLE] match %s settled via complete (winner=%q draw=%v already=%v)",
		matchID, result.WinnerID, result.IsDraw, result.AlreadySettled)
	return result, nil
}

// HandleMatchRemoved is the implicit settlement entry point, fired with the
// pre-deletion snapshot after a match document is removed. If the snapshot
// was still unsettled it claims the settlement ticket and, only when the
// claim succeeds, resolves the winner from the snapshot and batch-writes both
// history rows. There is no caller to notify, so failures are logged and
// swallowed.
func (s *Service) HandleMatchRemoved(ctx context.Context, snapshot models.Match) {
	if snapshot.ID == "" {
		log.Printf("[SETTLE] removal event without match id; ignoring")
		return
	}

	if snapshot.Settled() {
		log.Printf("[SETTLE] match %s removed after settlement; nothing to do", snapshot.ID)
		return
	}

	outcome := ResolveWinner(snapshot.ID, snapshot.Players(), snapshot.PlayerStates)
	entries := buildHistoryEntries(&snapshot, outcome, time.Now())

	// The match document is gone, so there is nothing to transact against;
	// the ticket claim and both history rows land as one independent atomic
	// batch. Losing the claim means the explicit path got there first.
	claimed := false
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		claimed, err = claimTicket(ctx, tx, snapshot.ID, settledByRemoval)
		if err != nil || !claimed {
			return err
		}
		return insertHistory(ctx, tx, entries)
	})
	if err != nil {
		log.Printf("[SETTLE] match %s: removal settlement failed: %v", snapshot.ID, err)
		return
	}
	if !claimed {
		log.Printf("[SETTLE] match %s already settled; skipping removal settlement", snapshot.ID)
		return
	}

	log.Printf("[SETTLE] match %s settled via removal (winner=%q draw=%v)",
		snapshot.ID, outcome.WinnerID, outcome.IsDraw)
}

// settledResult reports the outcome already written onto a settled match, or
// nil when the match is still unsettled. Repeating completion for a settled
// match always reports the stored outcome, never a re-resolved one.
func settledResult(m *models.Match) *SettlementResult {
	if !m.Settled() {
		return nil
	}
	return &SettlementResult{
		MatchID:        m.ID,
		WinnerID:       m.WinnerID.String,
		IsDraw:         m.IsDraw,
		AlreadySettled: true,
	}
}

// claimTicket performs the check-and-mark that keeps the two settlement
// paths from both writing history. Only the first insert for a match id
// succeeds; the second path observes the existing ticket and must no-op.
func claimTicket(ctx context.Context, ex sqlx.ExtContext, matchID, path string) (bool, error) {
	res, err := ex.ExecContext(ctx,
		`INSERT INTO settlement_tickets (match_id, settled_by) VALUES ($1, $2)
		 ON CONFLICT (match_id) DO NOTHING`, matchID, path)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// recordedOutcome reconstructs a settlement result from history for a match
// that no longer exists. Unknown history is still an idempotent success.
func (s *Service) recordedOutcome(ctx context.Context, tx *sqlx.Tx, matchID string) *SettlementResult {
	result := &SettlementResult{MatchID: matchID, AlreadySettled: true}

	var rows []models.MatchHistoryEntry
	err := tx.SelectContext(ctx, &rows,
		`SELECT match_id, player_id, result FROM match_history WHERE match_id = $1`, matchID)
	if err != nil {
		log.Printf("[SETTLE] match %s: history lookup failed: %v", matchID, err)
		return result
	}
	for _, row := range rows {
		switch row.Result {
		case models.ResultWin:
			result.WinnerID = row.PlayerID
		case models.ResultDraw:
			result.IsDraw = true
		}
	}
	return result
}

// buildHistoryEntries constructs the mirrored per-player history rows for a
// resolved match. Duration is clamped to zero and a missing creation
// timestamp falls back to the completion time.
func buildHistoryEntries(m *models.Match, outcome Outcome, completedAt time.Time) []models.MatchHistoryEntry {
	duration := int64(0)
	if !m.StartAt.IsZero() {
		if d := completedAt.Sub(m.StartAt).Milliseconds(); d > 0 {
			duration = d
		}
	}

	createdAt := completedAt
	if m.CreatedAt.Valid {
		createdAt = m.CreatedAt.Time
	}

	players := m.Players()
	entries := make([]models.MatchHistoryEntry, 0, len(players))
	for i, playerID := range players {
		if playerID == "" {
			continue
		}

		opponentID := ""
		for j, other := range players {
			if j != i && other != "" && other != playerID {
				opponentID = other
				break
			}
		}
		if opponentID == "" {
			// Unreachable for a well-formed two-player match.
			log.Printf("[SETTLE] match %s: no opponent found for player %s; skipping entry", m.ID, playerID)
			continue
		}

		playerState := m.PlayerStates[playerID]
		opponentState := m.PlayerStates[opponentID]

		result := models.ResultLoss
		switch {
		case outcome.IsDraw:
			result = models.ResultDraw
		case outcome.WinnerID == playerID:
			result = models.ResultWin
		}

		entries = append(entries, models.MatchHistoryEntry{
			MatchID:            m.ID,
			PlayerID:           playerID,
			OpponentID:         opponentID,
			OpponentUsername:   opponentState.Username,
			PuzzleID:           m.PuzzleID,
			Result:             result,
			PlayerProgress:     playerState.Progress,
			OpponentProgress:   opponentState.Progress,
			PlayerFinishedAt:   nullTime(playerState.FinishedAt),
			OpponentFinishedAt: nullTime(opponentState.FinishedAt),
			MatchDurationMs:    duration,
			CompletedAt:        completedAt,
			CreatedAt:          createdAt,
		})
	}
	return entries
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, entries []models.MatchHistoryEntry) error {
	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO match_history
			 (match_id, player_id, opponent_id, opponent_username, puzzle_id, result,
			  player_progress, opponent_progress, player_finished_at, opponent_finished_at,
			  match_duration_ms, completed_at, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			e.MatchID, e.PlayerID, e.OpponentID, e.OpponentUsername, e.PuzzleID, e.Result,
			e.PlayerProgress, e.OpponentProgress, e.PlayerFinishedAt, e.OpponentFinishedAt,
			e.MatchDurationMs, e.CompletedAt, e.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
