package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	readability "github.com/go-shiori/go-readability"
)

// ContentFetcher retrieves a web page and reduces it to its rendered
// main-content text, which is what the extraction service wants to see
// instead of navigation chrome and markup.
type ContentFetcher struct {
	httpClient *http.Client
	userAgent  string
}

func NewContentFetcher(httpClient *http.Client, userAgent string) *ContentFetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &ContentFetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

func (f *ContentFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return f.extract(data, pageURL)
}

func (f *ContentFetcher) extract(data []byte, pageURL string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		parsedURL = nil
	}

	article, err := readability.FromReader(bytes.NewReader(data), parsedURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	if article.TextContent == "" {
		return "", fmt.Errorf("no content extracted from page")
	}

	slog.Debug("Content extracted successfully",
		"url", pageURL,
		"title", article.Title,
		"content_length", len(article.TextContent))

	return article.TextContent, nil
}
