package logclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"proctoring/internal/cheatlog"
	"proctoring/internal/proctor"
)

// Client posts violation snapshots to the exam server. It is the network
// half of the auto-save path; the server replies with the merged record.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

var _ proctor.Sink = (*Client)(nil)

// Save submits an entry and returns the record the server merged it into.
func (c *Client) Save(ctx context.Context, e cheatlog.Entry) (cheatlog.Record, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return cheatlog.Record{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/cheating-logs", bytes.NewReader(body))
	if err != nil {
		return cheatlog.Record{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return cheatlog.Record{}, fmt.Errorf("save request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return cheatlog.Record{}, fmt.Errorf("save rejected %s: %s", resp.Status, string(bodyBytes))
	}

	var rec cheatlog.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return cheatlog.Record{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return rec, nil
}
