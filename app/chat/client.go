package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// Message is a single chat message as returned by the history API.
type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	Body      string `json:"body"`
	Type      string `json:"type"` // text, image, video, document, ...
	FromMe    bool   `json:"from_me"`
	Timestamp int64  `json:"timestamp"` // unix seconds
}

func (m Message) SentAt() time.Time {
	return time.Unix(m.Timestamp, 0).UTC()
}

// IsText reports whether the message carries plain text the pipeline can
// classify. Media and system messages are skipped by the poller.
func (m Message) IsText() bool {
	return m.Type == "" || m.Type == "text" || m.Type == "chat"
}

// Client fetches chat history incrementally: only messages newer than the
// caller's watermark.
type Client interface {
	GetMessagesSince(ctx context.Context, chatID string, since time.Time) ([]Message, error)
}

var _ Client = (*HTTPClient)(nil)

type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, apiKey string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &HTTPClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func (c *HTTPClient) GetMessagesSince(ctx context.Context, chatID string, since time.Time) ([]Message, error) {
	endpoint := fmt.Sprintf("%s/api/chats/%s/messages?after=%s",
		c.baseURL, url.PathEscape(chatID), strconv.FormatInt(since.Unix(), 10))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat history request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat history API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var payload struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(bodyBytes, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode chat history response: %w", err)
	}

	// Ascending timestamp order so the poller's watermark advances safely
	sort.Slice(payload.Messages, func(i, j int) bool {
		return payload.Messages[i].Timestamp < payload.Messages[j].Timestamp
	})

	return payload.Messages, nil
}
