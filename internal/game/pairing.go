package game

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/puzzlerush/backend/internal/database"
	"github.com/puzzlerush/backend/internal/models"
)

// MatchNotifier pushes a live "match found" signal to connected clients.
// Always invoked outside any store transaction.
type MatchNotifier interface {
	NotifyMatchFound(m models.Match)
}

// Service owns the matchmaking core: the pairing transaction, the settlement
// policy and the expiry sweeper.
type Service struct {
	db       *sqlx.DB
	rdb      *redis.Client
	notifier MatchNotifier
}

func NewService(db *sqlx.DB, rdb *redis.Client, notifier MatchNotifier) *Service {
	return &Service{db: db, rdb: rdb, notifier: notifier}
}

// HandleQueueEntryChanged is the pairing engine. It is invoked once per
// observed change to a queue entry and runs one atomic, conflict-retried
// transaction: re-read the triggering player's entry, claim the oldest
// other entry still inside the TTL window, create the match and delete both
// entries. Every abort short of an infrastructure failure is a benign no-op,
// which also makes the handler idempotent under redelivery: once a pairing
// succeeds, re-running it finds no entry and stops at step one.
func (s *Service) HandleQueueEntryChanged(ctx context.Context, userID string) {
	match, err := s.tryPair(ctx, userID)
	if err != nil {
		log.Printf("[PAIRING] pairing attempt for %s failed: %v", userID, err)
		return
	}
	if match == nil {
		return
	}

	log.Printf("[PAIRING] match %s created: %s vs %s (puzzle=%d)",
		match.ID, match.Player1ID, match.Player2ID, match.PuzzleID)

	if s.notifier != nil {
		s.notifier.NotifyMatchFound(*match)
	}
}

func (s *Service) tryPair(ctx context.Context, userID string) (*models.Match, error) {
	var created *models.Match

	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		created = nil

		// Re-read our own entry inside the transaction. Absent means the
		// player was already paired or withdrew; not an error.
		var self models.QueueEntry
		err := tx.GetContext(ctx, &self,
			`SELECT user_id, username, avatar, joined_at
			 FROM queue_entries WHERE user_id = $1 FOR UPDATE`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		// Claim the oldest waiting partner inside the TTL window. The plain
		// row lock makes two mutual pairing attempts collide instead of
		// passing each other: the blocked transaction either deadlocks and
		// is retried by WithTx, or resumes to find its partner's entry gone.
		// Either way the retry aborts at the self read above once this pair
		// has been consumed.
		cutoff := time.Now().Add(-QueueEntryTTL)
		var partner models.QueueEntry
		err = tx.GetContext(ctx, &partner,
			`SELECT user_id, username, avatar, joined_at
			 FROM queue_entries
			 WHERE user_id <> $1 AND joined_at > $2
			 ORDER BY joined_at ASC
			 LIMIT 1
			 FOR UPDATE`, userID, cutoff)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		match := newMatch(self, partner)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO matches
			 (id, player1_id, player2_id, player_states, puzzle_id, created_at, start_at, max_duration_secs)
			 VALUES ($1, $2, $3, $4, $5, NOW(), $6, $7)`,
			match.ID, match.Player1ID, match.Player2ID, match.PlayerStates,
			match.PuzzleID, match.StartAt, match.MaxDurationSecs)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`DELETE FROM queue_entries WHERE user_id IN ($1, $2)`,
			self.UserID, partner.UserID)
		if err != nil {
			return err
		}

		created = &match
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// newMatch builds an unsettled match for the two entries, ordered by join
// time so player1 is always the longer-waiting player.
func newMatch(a, b models.QueueEntry) models.Match {
	if b.JoinedAt.Before(a.JoinedAt) {
		a, b = b, a
	}
	return models.Match{
		ID:        uuid.NewString(),
		Player1ID: a.UserID,
		Player2ID: b.UserID,
		PlayerStates: models.PlayerStates{
			a.UserID: {Username: a.Username, Avatar: a.Avatar},
			b.UserID: {Username: b.Username, Avatar: b.Avatar},
		},
		PuzzleID:        pickPuzzleID(),
		StartAt:         time.Now().Add(StartGrace),
		MaxDurationSecs: MatchMaxDurationSecs,
	}
}
