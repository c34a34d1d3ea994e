package game

import (
	"log"
	"sort"

	"github.com/puzzlerush/backend/internal/models"
)

// Outcome is the result of resolving a match. An empty WinnerID with
// IsDraw set means the match ended in a draw; resolution never produces
// both a winner and a draw.
type Outcome struct {
	WinnerID string
	IsDraw   bool
}

type rankedPlayer struct {
	id         string
	order      int
	progress   float64
	finished   bool
	finishedAt int64 // unix millis, valid only when finished
}

// ResolveWinner determines a match outcome from the stored player order and
// state map. It is pure and deterministic.
//
// Ranking: finished players come before unfinished ones; among finished
// players the earlier finish wins; among unfinished players the higher
// progress wins. Equal finish times are not a draw: the player earlier in
// the stored order wins. Equal progress with neither finished is a draw.
//
// The algorithm is defined for exactly two players. A missing state resolves
// to progress 0 / unfinished with a warning; with a single present player
// that player wins; with none the outcome is a draw.
func ResolveWinner(matchID string, order []string, states models.PlayerStates) Outcome {
	if len(order) != 2 {
		log.Printf("[RESOLVE] match %s has %d players, expected 2; comparing the top two only", matchID, len(order))
	}

	ranked := make([]rankedPlayer, 0, len(order))
	for i, id := range order {
		if id == "" {
			continue
		}
		p := rankedPlayer{id: id, order: i}
		state, ok := states[id]
		if !ok {
			log.Printf("[RESOLVE] match %s is missing state for player %s; treating as progress 0", matchID, id)
		} else {
			p.progress = state.Progress
			if state.FinishedAt != nil {
				p.finished = true
				p.finishedAt = state.FinishedAt.UnixMilli()
			}
		}
		ranked = append(ranked, p)
	}

	switch len(ranked) {
	case 0:
		return Outcome{IsDraw: true}
	case 1:
		return Outcome{WinnerID: ranked[0].id}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.finished != b.finished {
			return a.finished
		}
		if a.finished {
			if a.finishedAt != b.finishedAt {
				return a.finishedAt < b.finishedAt
			}
			return a.order < b.order
		}
		return a.progress > b.progress
	})

	top, second := ranked[0], ranked[1]
	if !top.finished && !second.finished && top.progress == second.progress {
		return Outcome{IsDraw: true}
	}
	return Outcome{WinnerID: top.id}
}
