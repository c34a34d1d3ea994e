package game

import (
	"testing"
	"time"

	"github.com/puzzlerush/backend/internal/models"
)

func ts(offset time.Duration) *time.Time {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(offset)
	return &t
}

func TestFinishedBeatsUnfinished(t *testing.T) {
	states := models.PlayerStates{
		"a": {Progress: 80, FinishedAt: ts(0)},
		"b": {Progress: 95},
	}

	out := ResolveWinner("m1", []string{"a", "b"}, states)
	if out.WinnerID != "a" || out.IsDraw {
		t.Errorf("expected a to win, got winner=%q draw=%v", out.WinnerID, out.IsDraw)
	}
}

func TestEqualProgressUnfinishedIsDraw(t *testing.T) {
	states := models.PlayerStates{
		"a": {Progress: 50},
		"b": {Progress: 50},
	}

	out := ResolveWinner("m1", []string{"a", "b"}, states)
	if !out.IsDraw || out.WinnerID != "" {
		t.Errorf("expected draw, got winner=%q draw=%v", out.WinnerID, out.IsDraw)
	}
}

func TestHigherProgressWinsWhenNeitherFinished(t *testing.T) {
	states := models.PlayerStates{
		"a": {Progress: 40},
		"b": {Progress: 60},
	}

	out := ResolveWinner("m1", []string{"a", "b"}, states)
	if out.WinnerID != "b" || out.IsDraw {
		t.Errorf("expected b to win, got winner=%q draw=%v", out.WinnerID, out.IsDraw)
	}
}

func TestEarlierFinishWins(t *testing.T) {
	states := models.PlayerStates{
		"a": {Progress: 100, FinishedAt: ts(2 * time.Second)},
		"b": {Progress: 100, FinishedAt: ts(5 * time.Second)},
	}

	out := ResolveWinner("m1", []string{"a", "b"}, states)
	if out.WinnerID != "a" || out.IsDraw {
		t.Errorf("expected a to win, got winner=%q draw=%v", out.WinnerID, out.IsDraw)
	}
}

func TestEqualFinishTimesFallBackToStoredOrder(t *testing.T) {
	states := models.PlayerStates{
		"a": {Progress: 100, FinishedAt: ts(3 * time.Second)},
		"b": {Progress: 100, FinishedAt: ts(3 * time.Second)},
	}

	// Not a draw: the player earlier in the stored order wins.
	out := ResolveWinner("m1", []string{"b", "a"}, states)
	if out.WinnerID != "b" || out.IsDraw {
		t.Errorf("expected b (first in stored order) to win, got winner=%q draw=%v", out.WinnerID, out.IsDraw)
	}
}

func TestMissingStateDefaultsToZeroProgress(t *testing.T) {
	states := models.PlayerStates{
		"a": {Progress: 10},
	}

	out := ResolveWinner("m1", []string{"a", "b"}, states)
	if out.WinnerID != "a" || out.IsDraw {
		t.Errorf("expected a to win against missing state, got winner=%q draw=%v", out.WinnerID, out.IsDraw)
	}
}

func TestBothStatesMissingIsDraw(t *testing.T) {
	out := ResolveWinner("m1", []string{"a", "b"}, models.PlayerStates{})
	if !out.IsDraw {
		t.Errorf("expected draw with no state at all, got winner=%q", out.WinnerID)
	}
}

func TestSinglePlayerWinsByDefault(t *testing.T) {
	states := models.PlayerStates{
		"a": {Progress: 5},
	}

	out := ResolveWinner("m1", []string{"a", ""}, states)
	if out.WinnerID != "a" {
		t.Errorf("expected sole player to win, got winner=%q draw=%v", out.WinnerID, out.IsDraw)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	states := models.PlayerStates{
		"a": {Progress: 70},
		"b": {Progress: 70, FinishedAt: ts(time.Second)},
	}

	first := ResolveWinner("m1", []string{"a", "b"}, states)
	for i := 0; i < 10; i++ {
		if out := ResolveWinner("m1", []string{"a", "b"}, states); out != first {
			t.Fatalf("resolution not deterministic: %+v vs %+v", first, out)
		}
	}
}
