package game

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/puzzlerush/backend/internal/models"
)

func testMatch() models.Match {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return models.Match{
		ID:        "m1",
		Player1ID: "a",
		Player2ID: "b",
		PlayerStates: models.PlayerStates{
			"a": {Username: "alice", Avatar: "cat", Progress: 80},
			"b": {Username: "bob", Avatar: "dog", Progress: 60},
		},
		PuzzleID:        7,
		CreatedAt:       sql.NullTime{Time: created, Valid: true},
		StartAt:         created.Add(3 * time.Second),
		MaxDurationSecs: MatchMaxDurationSecs,
	}
}

func TestHistoryEntriesMirrorEachOther(t *testing.T) {
	m := testMatch()
	completed := m.StartAt.Add(90 * time.Second)

	entries := buildHistoryEntries(&m, Outcome{WinnerID: "a"}, completed)
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}

	var byPlayer = map[string]models.MatchHistoryEntry{}
	for _, e := range entries {
		byPlayer[e.PlayerID] = e
	}

	a, b := byPlayer["a"], byPlayer["b"]
	if a.Result != models.ResultWin || b.Result != models.ResultLoss {
		t.Errorf("expected win/loss, got %s/%s", a.Result, b.Result)
	}
	if a.OpponentID != "b" || b.OpponentID != "a" {
		t.Errorf("opponent ids not mirrored: %s / %s", a.OpponentID, b.OpponentID)
	}
	if a.OpponentUsername != "bob" || b.OpponentUsername != "alice" {
		t.Errorf("opponent usernames not mirrored: %q / %q", a.OpponentUsername, b.OpponentUsername)
	}
	if a.PlayerProgress != 80 || a.OpponentProgress != 60 {
		t.Errorf("progress fields wrong: player=%v opponent=%v", a.PlayerProgress, a.OpponentProgress)
	}
	if a.MatchDurationMs != (90 * time.Second).Milliseconds() {
		t.Errorf("expected 90s duration, got %dms", a.MatchDurationMs)
	}
}

func TestDrawProducesTwoDrawEntries(t *testing.T) {
	m := testMatch()
	entries := buildHistoryEntries(&m, Outcome{IsDraw: true}, m.StartAt.Add(time.Minute))
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Result != models.ResultDraw {
			t.Errorf("player %s: expected draw, got %s", e.PlayerID, e.Result)
		}
	}
}

func TestDurationClampedToZero(t *testing.T) {
	m := testMatch()
	// completedAt before startAt must never yield a negative duration
	completed := m.StartAt.Add(-10 * time.Second)

	entries := buildHistoryEntries(&m, Outcome{WinnerID: "a"}, completed)
	for _, e := range entries {
		if e.MatchDurationMs != 0 {
			t.Errorf("player %s: expected clamped duration 0, got %d", e.PlayerID, e.MatchDurationMs)
		}
	}
}

func TestMissingStartAtMeansZeroDuration(t *testing.T) {
	m := testMatch()
	m.StartAt = time.Time{}

	entries := buildHistoryEntries(&m, Outcome{WinnerID: "a"}, time.Now())
	for _, e := range entries {
		if e.MatchDurationMs != 0 {
			t.Errorf("player %s: expected duration 0 without start_at, got %d", e.PlayerID, e.MatchDurationMs)
		}
	}
}

func TestCreatedAtFallsBackToCompletedAt(t *testing.T) {
	m := testMatch()
	m.CreatedAt = sql.NullTime{}
	completed := m.StartAt.Add(time.Minute)

	entries := buildHistoryEntries(&m, Outcome{WinnerID: "b"}, completed)
	for _, e := range entries {
		if !e.CreatedAt.Equal(completed) {
			t.Errorf("player %s: created_at should fall back to completed_at, got %v", e.PlayerID, e.CreatedAt)
		}
	}
}

func TestMissingOpponentSkipsEntry(t *testing.T) {
	m := testMatch()
	m.Player2ID = ""

	entries := buildHistoryEntries(&m, Outcome{WinnerID: "a"}, m.StartAt.Add(time.Minute))
	if len(entries) != 0 {
		t.Errorf("expected no entries without an opponent, got %d", len(entries))
	}
}

func TestSettledResultRepeatsStoredOutcome(t *testing.T) {
	m := testMatch()
	if settledResult(&m) != nil {
		t.Fatal("unsettled match must not report a stored outcome")
	}

	m.CompletedAt = sql.NullTime{Time: m.StartAt.Add(time.Minute), Valid: true}
	m.WinnerID = sql.NullString{String: "a", Valid: true}

	first := settledResult(&m)
	second := settledResult(&m)
	if first == nil || second == nil {
		t.Fatal("settled match must report its stored outcome")
	}
	if !first.AlreadySettled || first.WinnerID != "a" || first.IsDraw {
		t.Errorf("unexpected stored outcome: %+v", first)
	}
	if *first != *second {
		t.Errorf("repeated completion must report the same outcome: %+v vs %+v", first, second)
	}
}

func TestSettledResultForDrawHasNoWinner(t *testing.T) {
	m := testMatch()
	m.CompletedAt = sql.NullTime{Time: m.StartAt.Add(time.Minute), Valid: true}
	m.IsDraw = true

	r := settledResult(&m)
	if r == nil || !r.IsDraw || r.WinnerID != "" {
		t.Errorf("expected already-settled draw, got %+v", r)
	}
}

func TestRemovalOfSettledMatchWritesNothing(t *testing.T) {
	m := testMatch()
	m.CompletedAt = sql.NullTime{Time: m.StartAt.Add(time.Minute), Valid: true}
	m.WinnerID = sql.NullString{String: "a", Valid: true}

	// A settled snapshot must short-circuit before any store access; the
	// zero-value service would panic past the guard.
	svc := &Service{}
	svc.HandleMatchRemoved(context.Background(), m)
}

func TestRemovalWithoutMatchIDWritesNothing(t *testing.T) {
	svc := &Service{}
	svc.HandleMatchRemoved(context.Background(), models.Match{})
}

func TestNewMatchOrdersPlayersByJoinTime(t *testing.T) {
	now := time.Now()
	older := models.QueueEntry{UserID: "late", Username: "late", JoinedAt: now}
	newer := models.QueueEntry{UserID: "early", Username: "early", JoinedAt: now.Add(-10 * time.Second)}

	m := newMatch(older, newer)
	if m.Player1ID != "early" || m.Player2ID != "late" {
		t.Errorf("expected longer-waiting player first, got %s/%s", m.Player1ID, m.Player2ID)
	}
	if len(m.PlayerStates) != 2 {
		t.Errorf("expected seeded states for both players, got %d", len(m.PlayerStates))
	}
	if m.WinnerID.Valid || m.IsDraw || m.CompletedAt.Valid {
		t.Errorf("new match must be unsettled")
	}
}

func TestPickPuzzleIDRespectsExclusions(t *testing.T) {
	for i := 0; i < 500; i++ {
		id := pickPuzzleID()
		if id < puzzleIDMin || id > puzzleIDMax {
			t.Fatalf("puzzle id %d outside range", id)
		}
		if excludedPuzzleIDs[id] {
			t.Fatalf("puzzle id %d is excluded", id)
		}
	}
}
