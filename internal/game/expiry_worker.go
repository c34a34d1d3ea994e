package game

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/puzzlerush/backend/internal/database"
	"github.com/puzzlerush/backend/internal/events"
	"github.com/puzzlerush/backend/internal/models"
)

// StartExpirySweeper runs a background job that removes matches whose play
// window has passed and publishes the removal trigger with the pre-delete
// snapshot. Removal is what ultimately drives implicit settlement for
// matches nobody completed explicitly.
func (s *Service) StartExpirySweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[SWEEP] Starting match expiry sweeper (poll every %v)", interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[SWEEP] Sweeper stopped")
			return
		case <-ticker.C:
			s.sweepExpiredMatches(ctx)
		}
	}
}

func (s *Service) sweepExpiredMatches(ctx context.Context) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM matches
		 WHERE start_at + make_interval(secs => max_duration_secs + $1) < NOW()`,
		sweepGraceSecs)
	if err != nil {
		log.Printf("[SWEEP] failed to list expired matches: %v", err)
		return
	}

	for _, id := range ids {
		snapshot, err := s.removeMatch(ctx, id)
		if err != nil {
			log.Printf("[SWEEP] failed to remove match %s: %v", id, err)
			continue
		}
		if snapshot == nil {
			continue // already gone
		}

		log.Printf("[SWEEP] removed expired match %s (settled=%v)", id, snapshot.Settled())

		// Trigger fires outside the transaction, carrying the snapshot the
		// settlement coordinator needs now that the row no longer exists.
		events.PublishMatchRemoved(ctx, s.rdb, *snapshot)
	}
}

// removeMatch deletes one match and returns its pre-delete snapshot, or nil
// if another actor removed it first.
func (s *Service) removeMatch(ctx context.Context, matchID string) (*models.Match, error) {
	var snapshot *models.Match
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		snapshot = nil

		var m models.Match
		err := tx.GetContext(ctx, &m,
			`SELECT id, player1_id, player2_id, player_states, puzzle_id,
			        created_at, start_at, max_duration_secs, winner_id, is_draw, completed_at
			 FROM matches WHERE id = $1 FOR UPDATE`, matchID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM matches WHERE id = $1`, m.ID); err != nil {
			return err
		}

		snapshot = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}
