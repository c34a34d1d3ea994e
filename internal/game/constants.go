package game

import (
	"crypto/rand"
	"math/big"
	"time"
)

// Queue entries older than this are never selected as partners.
const QueueEntryTTL = 45 * time.Second

// StartGrace delays start_at so both clients have time to load the puzzle.
const StartGrace = 3 * time.Second

// MatchMaxDurationSecs caps how long a match may run before the expiry
// sweeper removes it.
const MatchMaxDurationSecs = 180

// sweepGraceSecs keeps the sweeper from racing clients that are still
// submitting their final state right at the deadline.
const sweepGraceSecs = 30

// Puzzle ids are drawn uniformly from [puzzleIDMin, puzzleIDMax], skipping
// retired puzzles.
const (
	puzzleIDMin = 1
	puzzleIDMax = 180
)

var excludedPuzzleIDs = map[int]bool{
	13:  true,
	42:  true,
	117: true,
}

// pickPuzzleID draws a random puzzle id outside the exclusion list.
func pickPuzzleID() int {
	span := int64(puzzleIDMax - puzzleIDMin + 1)
	for {
		n, err := rand.Int(rand.Reader, big.NewInt(span))
		if err != nil {
			// crypto/rand failing means something is deeply wrong; fall
			// back to the first non-excluded id rather than crash pairing.
			for id := puzzleIDMin; id <= puzzleIDMax; id++ {
				if !excludedPuzzleIDs[id] {
					return id
				}
			}
		}
		id := puzzleIDMin + int(n.Int64())
		if !excludedPuzzleIDs[id] {
			return id
		}
	}
}
