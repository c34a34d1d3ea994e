package push

import (
	"context"
	"fmt"
	"testing"
)

func makeTokens(n int) []string {
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%d", i)
	}
	return tokens
}

func TestChunkTokensSplitsAtBatchSize(t *testing.T) {
	cases := []struct {
		count   int
		batches int
		lastLen int
	}{
		{0, 0, 0},
		{1, 1, 1},
		{BatchSize, 1, BatchSize},
		{BatchSize + 1, 2, 1},
		{2*BatchSize + 37, 3, 37},
	}

	for _, tc := range cases {
		batches := chunkTokens(makeTokens(tc.count), BatchSize)
		if len(batches) != tc.batches {
			t.Errorf("%d tokens: expected %d batches, got %d", tc.count, tc.batches, len(batches))
			continue
		}
		if tc.batches == 0 {
			continue
		}
		if got := len(batches[len(batches)-1]); got != tc.lastLen {
			t.Errorf("%d tokens: expected last batch of %d, got %d", tc.count, tc.lastLen, got)
		}
		total := 0
		for _, b := range batches {
			if len(b) > BatchSize {
				t.Errorf("%d tokens: batch exceeds limit: %d", tc.count, len(b))
			}
			total += len(b)
		}
		if total != tc.count {
			t.Errorf("%d tokens: chunking lost tokens, total=%d", tc.count, total)
		}
	}
}

func TestChunkTokensRejectsBadSize(t *testing.T) {
	if batches := chunkTokens(makeTokens(5), 0); batches != nil {
		t.Errorf("expected nil for size 0, got %d batches", len(batches))
	}
}

func TestNilClientSendsNothing(t *testing.T) {
	var c *Client
	report := c.SendMulticast(context.Background(), makeTokens(3), Message{Title: "x"})
	if report.Success != 0 || report.Failure != 0 {
		t.Errorf("nil client should report zero counts, got %+v", report)
	}
}
