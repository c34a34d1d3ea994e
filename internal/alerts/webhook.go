package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/puzzlerush/backend/internal/config"
)

// operatorUserID never triggers a self-alert; the operator joining the queue
// during smoke tests would otherwise spam the channel.
const operatorUserID = "op-internal"

// Client posts one-line alerts to the ops webhook. The channel is enabled
// only when both webhook secrets are configured.
type Client struct {
	webhookID  string
	token      string
	httpClient *http.Client
}

// Default package-level client (set from main on startup)
var Default *Client

// SetDefault sets the package Default client.
func SetDefault(c *Client) {
	Default = c
}

// NewClient constructs a webhook client. Returns nil unless both secrets are set.
func NewClient(cfg *config.Config) *Client {
	if cfg == nil || cfg.AlertWebhookID == "" || cfg.AlertWebhookToken == "" {
		return nil
	}
	return &Client{
		webhookID:  cfg.AlertWebhookID,
		token:      cfg.AlertWebhookToken,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NotifyUserJoined posts a one-line join alert, suppressing the operator
// identity. Failures are logged; the triggering flow never depends on them.
func (c *Client) NotifyUserJoined(ctx context.Context, userID, username string) {
	if c == nil {
		return
	}
	if userID == operatorUserID {
		return
	}

	line := fmt.Sprintf("%s joined the matchmaking queue", username)
	if err := c.post(ctx, line); err != nil {
		log.Printf("[ALERTS] webhook post failed: %v", err)
	}
}

func (c *Client) post(ctx context.Context, text string) error {
	payload := map[string]string{"content": text}
	b, _ := json.Marshal(payload)

	url := fmt.Sprintf("https://discord.com/api/webhooks/%s/%s", c.webhookID, c.token)
	req, err := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(string(b)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
