package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/castradar/castradar/app/database"
)

// SearchDocument is the searchable projection of a published candidate.
type SearchDocument struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Company      string `json:"company"`
	Location     string `json:"location"`
	Compensation string `json:"compensation"`
	Requirements string `json:"requirements"`
	Deadline     string `json:"deadline"`
	ContactInfo  string `json:"contact_info"`
	SourceURL    string `json:"source_url"`
	IsAggregated bool   `json:"is_aggregated"`
}

// SearchIndex is the search collaborator's write API. Ranking and retrieval
// are its own business; this pipeline only upserts documents.
type SearchIndex interface {
	Upsert(ctx context.Context, doc SearchDocument) error
}

var _ SearchIndex = (*HTTPSearchIndex)(nil)

// HTTPSearchIndex writes documents to a Meilisearch-style HTTP index.
type HTTPSearchIndex struct {
	baseURL    string
	apiKey     string
	indexName  string
	httpClient *http.Client
}

func NewHTTPSearchIndex(baseURL, apiKey, indexName string, httpClient *http.Client) *HTTPSearchIndex {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &HTTPSearchIndex{
		baseURL:    baseURL,
		apiKey:     apiKey,
		indexName:  indexName,
		httpClient: httpClient,
	}
}

func (s *HTTPSearchIndex) Upsert(ctx context.Context, doc SearchDocument) error {
	jsonData, err := json.Marshal([]SearchDocument{doc})
	if err != nil {
		return fmt.Errorf("failed to marshal search document: %w", err)
	}

	endpoint := fmt.Sprintf("%s/indexes/%s/documents", s.baseURL, s.indexName)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search index request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("search index returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func documentFromCandidate(candidate database.Candidate) SearchDocument {
	return SearchDocument{
		ID:           candidate.ID,
		Title:        candidate.Title,
		Description:  candidate.Description,
		Company:      candidate.Company,
		Location:     candidate.Location,
		Compensation: candidate.Compensation,
		Requirements: candidate.Requirements,
		Deadline:     candidate.Deadline,
		ContactInfo:  candidate.ContactInfo,
		SourceURL:    candidate.SourceURL,
		IsAggregated: candidate.IsAggregated,
	}
}
