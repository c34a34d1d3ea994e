package push

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/puzzlerush/backend/internal/config"
)

// BatchSize is the maximum number of device tokens per gateway request.
const BatchSize = 400

// Client is a minimal push gateway client with token caching in Redis.
type Client struct {
	baseURL              string
	username             string
	password             string
	rdb                  *redis.Client
	httpClient           *http.Client
	tokenFallbackSeconds int
	cacheKeyPrefix       string
}

// Default package-level client (set from main on startup)
var Default *Client

// SetDefault sets the package Default client.
func SetDefault(c *Client) {
	Default = c
}

// NewClient constructs a push gateway client. Returns nil if not configured.
func NewClient(cfg *config.Config, rdb *redis.Client) *Client {
	if cfg == nil || cfg.PushServiceBaseURL == "" || cfg.PushServiceUsername == "" || cfg.PushServicePassword == "" {
		return nil
	}

	return &Client{
		baseURL:              strings.TrimRight(cfg.PushServiceBaseURL, "/"),
		username:             cfg.PushServiceUsername,
		password:             cfg.PushServicePassword,
		rdb:                  rdb,
		httpClient:           &http.Client{Timeout: 15 * time.Second},
		tokenFallbackSeconds: cfg.PushTokenFallbackSecs,
		cacheKeyPrefix:       "push_token:",
	}
}

// Message is one push payload. A silent message carries data only and no
// visible notification.
type Message struct {
	Title  string            `json:"title,omitempty"`
	Body   string            `json:"body,omitempty"`
	Data   map[string]string `json:"data,omitempty"`
	Silent bool              `json:"silent"`
}

// Report aggregates per-batch delivery counts.
type Report struct {
	Success int
	Failure int
}

// SendMulticast delivers msg to every token, split into fixed-size batches
// dispatched concurrently. One batch failing entirely never aborts its
// siblings; its tokens are just counted as failures.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, msg Message) Report {
	if c == nil || len(tokens) == 0 {
		return Report{}
	}

	batches := chunkTokens(tokens, BatchSize)

	var mu sync.Mutex
	var report Report
	var wg sync.WaitGroup

	for i, batch := range batches {
		wg.Add(1)
		go func(idx int, batch []string) {
			defer wg.Done()
			ok, fail, err := c.sendBatch(ctx, batch, msg)
			if err != nil {
				log.Printf("[PUSH] batch %d/%d failed entirely: %v", idx+1, len(batches), err)
				fail = len(batch)
				ok = 0
			}
			mu.Lock()
			report.Success += ok
			report.Failure += fail
			mu.Unlock()
		}(i, batch)
	}
	wg.Wait()

	return report
}

// sendBatch posts one gateway request for up to BatchSize tokens and returns
// the per-token counts the gateway reports.
func (c *Client) sendBatch(ctx context.Context, tokens []string, msg Message) (int, int, error) {
	if len(tokens) > BatchSize {
		return 0, 0, fmt.Errorf("batch of %d exceeds limit %d", len(tokens), BatchSize)
	}

	// Retry loop for transient errors
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		accessToken, err := c.getAccessToken(ctx)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(100+attempt*200) * time.Millisecond)
			continue
		}

		payload := map[string]interface{}{
			"tokens":  tokens,
			"message": msg,
		}

		b, _ := json.Marshal(payload)
		req, _ := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/api/send_multicast/", strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("authToken", accessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < 2 {
				time.Sleep(time.Duration(100+attempt*200) * time.Millisecond)
				continue
			}
			break
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == 200 {
			var parsed struct {
				Success int `json:"success"`
				Failure int `json:"failure"`
			}
			if err := json.Unmarshal(body, &parsed); err == nil && parsed.Success+parsed.Failure > 0 {
				return parsed.Success, parsed.Failure, nil
			}
			return len(tokens), 0, nil
		}

		// For 5xx transient errors retry
		if resp.StatusCode >= 500 && attempt < 2 {
			lastErr = fmt.Errorf("push provider error %d: %s", resp.StatusCode, string(body))
			time.Sleep(time.Duration(100+attempt*200) * time.Millisecond)
			continue
		}

		// 4xx or exhausted retries
		return 0, 0, fmt.Errorf("push send failed: %d %s", resp.StatusCode, string(body))
	}

	if lastErr != nil {
		return 0, 0, lastErr
	}
	return 0, 0, errors.New("push send failed")
}

// chunkTokens splits tokens into slices of at most size elements.
func chunkTokens(tokens []string, size int) [][]string {
	if size <= 0 {
		return nil
	}
	var batches [][]string
	for start := 0; start < len(tokens); start += size {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		batches = append(batches, tokens[start:end])
	}
	return batches
}

// getAccessToken fetches or returns a cached gateway access token.
func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	if c == nil {
		return "", errors.New("push client not configured")
	}

	key := c.cacheKeyPrefix + shortCredHash(c.username, c.password)
	// Try Redis cache
	if c.rdb != nil {
		if tok, err := c.rdb.Get(ctx, key).Result(); err == nil {
			return tok, nil
		}
	}

	// Fetch new token from API
	data := map[string]string{
		"username": c.username,
		"password": c.password,
	}
	b, _ := json.Marshal(data)
	req, _ := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/get_token/", strings.NewReader(string(b)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.AccessToken == "" {
		return "", errors.New("token not present in response")
	}

	ttl := parsed.ExpiresIn
	if ttl <= 0 {
		ttl = c.tokenFallbackSeconds
	}
	if c.rdb != nil && ttl > 0 {
		c.rdb.Set(ctx, key, parsed.AccessToken, time.Duration(ttl)*time.Second)
	}

	return parsed.AccessToken, nil
}

func shortCredHash(username, password string) string {
	h := md5.Sum([]byte(username + ":" + password))
	return hex.EncodeToString(h[:])[:12]
}
