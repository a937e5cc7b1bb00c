package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var _ Client = (*LLMClient)(nil)

// LLMClient talks to an OpenAI-compatible chat completions endpoint and asks
// it to turn free text into structured casting opportunities.
type LLMClient struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewLLMClient(url, apiKey, model string, httpClient *http.Client) *LLMClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &LLMClient{
		url:        url,
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// extractionPayload is the JSON contract the model is instructed to follow.
// An empty opportunities array is the "not a casting opportunity" verdict.
type extractionPayload struct {
	Opportunities []CandidateFields `json:"opportunities"`
}

func systemPrompt() string {
	return `You extract casting opportunities from raw text in English or Arabic.
The text may be a scraped web page containing multiple listings, a chat message, or a forwarded announcement.

Task:
1. Find every genuine casting opportunity: a role or crew position that people can still apply for.
2. Announcements of finished work, premieres, congratulations, workshops, and festivals are NOT opportunities.
3. For each opportunity output an object with the keys: title, description, company, location, compensation, requirements, deadline, contact_info. Use empty strings for unknown fields. Keep the original language of the text.
4. Return ONLY a raw JSON object of the form {"opportunities": [...]}. If the text contains no casting opportunity, return {"opportunities": []}. Do not wrap the JSON in markdown fences.`
}

func (c *LLMClient) Extract(ctx context.Context, text string) (*Result, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt()},
			{Role: "user", Content: text},
		},
		Temperature: 0.2,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(bodyBytes, &chatResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if chatResp.Error != nil {
		return nil, fmt.Errorf("extraction service error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	cleaned := cleanMarkdownJSON(chatResp.Choices[0].Message.Content)

	var payload extractionPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if len(payload.Opportunities) == 0 {
		return &Result{Outcome: OutcomeRejected}, nil
	}

	candidates := make([]CandidateFields, 0, len(payload.Opportunities))
	for _, fields := range payload.Opportunities {
		if strings.TrimSpace(fields.Title) == "" {
			return nil, fmt.Errorf("%w: opportunity without a title", ErrMalformedResponse)
		}
		candidates = append(candidates, fields)
	}

	return &Result{Outcome: OutcomeCandidates, Candidates: candidates}, nil
}

// cleanMarkdownJSON strips code fences some models add despite instructions.
func cleanMarkdownJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}
