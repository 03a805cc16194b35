package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPOutbound pushes replies to the platform's REST endpoint as
// {"chat_id": ..., "text": ...}.
type HTTPOutbound struct {
	url    string
	token  string
	client *http.Client
}

func NewHTTPOutbound(url, token string, timeout time.Duration) *HTTPOutbound {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPOutbound{
		url:    strings.TrimSpace(url),
		token:  strings.TrimSpace(token),
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPOutbound) SendReply(ctx context.Context, chatID string, text string) error {
	b, err := json.Marshal(map[string]string{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("outbound api error: %s body=%s", resp.Status, string(respBody))
	}

	return nil
}
