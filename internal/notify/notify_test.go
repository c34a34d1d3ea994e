package notify

import (
	"database/sql"
	"testing"

	"github.com/puzzlerush/backend/internal/models"
)

func device(token string, bg, fg interface{}) models.Device {
	d := models.Device{PushToken: token}
	if v, ok := bg.(bool); ok {
		d.BackgroundEnabled = sql.NullBool{Bool: v, Valid: true}
	}
	if v, ok := fg.(bool); ok {
		d.ForegroundEnabled = sql.NullBool{Bool: v, Valid: true}
	}
	return d
}

func TestPartitionTokens(t *testing.T) {
	devices := []models.Device{
		device("t1", nil, nil),     // both unset -> background
		device("t2", true, true),   // both on -> background
		device("t3", false, true),  // foreground only -> silent group
		device("t4", false, nil),   // foreground unset counts enabled -> silent group
		device("t5", false, false), // both off -> skipped
		device("", true, true),     // empty token -> skipped
	}

	background, foreground := partitionTokens(devices)

	wantBG := []string{"t1", "t2"}
	wantFG := []string{"t3", "t4"}

	if len(background) != len(wantBG) {
		t.Fatalf("background: expected %v, got %v", wantBG, background)
	}
	for i, tok := range wantBG {
		if background[i] != tok {
			t.Errorf("background[%d]: expected %s, got %s", i, tok, background[i])
		}
	}

	if len(foreground) != len(wantFG) {
		t.Fatalf("foreground: expected %v, got %v", wantFG, foreground)
	}
	for i, tok := range wantFG {
		if foreground[i] != tok {
			t.Errorf("foreground[%d]: expected %s, got %s", i, tok, foreground[i])
		}
	}
}

func TestPartitionTokensEmptyInput(t *testing.T) {
	background, foreground := partitionTokens(nil)
	if len(background) != 0 || len(foreground) != 0 {
		t.Errorf("expected empty groups, got %v / %v", background, foreground)
	}
}
