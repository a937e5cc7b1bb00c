package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/castradar/castradar/app/database"
	"github.com/castradar/castradar/app/review"
	"github.com/castradar/castradar/app/tasks"
)

type fakeSourceRepo struct {
	sources map[string]*database.Source
}

func (r *fakeSourceRepo) GetSource(name string) (*database.Source, error) {
	return r.sources[name], nil
}

func (r *fakeSourceRepo) GetActiveSources(sourceType string) ([]database.Source, error) {
	return nil, nil
}

func (r *fakeSourceRepo) GetSourceCount() (int, error) { return len(r.sources), nil }

func (r *fakeSourceRepo) UpsertSource(name, sourceType, identifier string, isActive bool) (string, error) {
	return "", nil
}

func (r *fakeSourceRepo) UpdateWatermark(sourceID string, timestamp time.Time) error { return nil }

type fakeCandidateRepo struct {
	candidates   map[string]*database.Candidate
	seenLocators map[string]bool
}

func (r *fakeCandidateRepo) GetCandidate(id string) (*database.Candidate, error) {
	c, ok := r.candidates[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (r *fakeCandidateRepo) GetPendingCandidates(limit int) ([]database.Candidate, error) {
	var result []database.Candidate
	for _, c := range r.candidates {
		if c.Status == database.StatusPendingReview {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (r *fakeCandidateRepo) GetStatusCounts() (map[string]int, error) {
	counts := map[string]int{}
	for _, c := range r.candidates {
		counts[c.Status]++
	}
	return counts, nil
}

func (r *fakeCandidateRepo) CheckDuplicate(contentHash string) (bool, *string, error) {
	return false, nil, nil
}

func (r *fakeCandidateRepo) HasSourceLocator(sourceLocator string) (bool, error) {
	return r.seenLocators[sourceLocator], nil
}

func (r *fakeCandidateRepo) CreateCandidate(candidate database.Candidate) (string, bool, error) {
	r.candidates[candidate.ID] = &candidate
	return candidate.ID, true, nil
}

func (r *fakeCandidateRepo) UpdateFields(id string, edits database.CandidateEdits) (bool, error) {
	c, ok := r.candidates[id]
	if !ok || c.Status != database.StatusPendingReview {
		return false, nil
	}
	if edits.Title != nil {
		c.Title = *edits.Title
	}
	return true, nil
}

func (r *fakeCandidateRepo) TransitionStatus(id, fromStatus, toStatus, reviewer string) (bool, error) {
	c, ok := r.candidates[id]
	if !ok || c.Status != fromStatus {
		return false, nil
	}
	c.Status = toStatus
	c.ReviewedBy = reviewer
	return true, nil
}

type fakeDeadLetterRepo struct{ count int }

func (r *fakeDeadLetterRepo) AddDeadLetter(entry database.DeadLetter) (string, error) {
	r.count++
	return "dl-1", nil
}

func (r *fakeDeadLetterRepo) GetDeadLetterCount() (int, error) { return r.count, nil }

type fakeAuditRepo struct{ count int }

func (r *fakeAuditRepo) RecordEvent(eventType, resourceType, resourceID string, metadata map[string]string) (string, error) {
	r.count++
	return "event-1", nil
}

func (r *fakeAuditRepo) GetEventCount() (int, error) { return r.count, nil }

type fakeScheduler struct {
	jobs       []tasks.ExtractJob
	enqueueErr error
}

func (s *fakeScheduler) Start() {}
func (s *fakeScheduler) Stop()  {}

func (s *fakeScheduler) EnqueueTask(task tasks.TaskInterface) error { return nil }

func (s *fakeScheduler) EnqueueExtraction(job tasks.ExtractJob) error {
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	s.jobs = append(s.jobs, job)
	return nil
}

type fakePublisher struct{ published []database.Candidate }

func (p *fakePublisher) Publish(ctx context.Context, candidate database.Candidate) error {
	p.published = append(p.published, candidate)
	return nil
}

const (
	testAPIKey        = "reviewer-key"
	testWebhookSecret = "whsec"
)

type testEnv struct {
	router        *gin.Engine
	sourceRepo    *fakeSourceRepo
	candidateRepo *fakeCandidateRepo
	scheduler     *fakeScheduler
	publisher     *fakePublisher
}

func newTestEnv() *testEnv {
	sourceRepo := &fakeSourceRepo{sources: map[string]*database.Source{
		"casting-group": {ID: "src-1", Name: "casting-group", Type: database.SourceTypeWhatsApp, Identifier: "group-1", IsActive: true},
		"disabled":      {ID: "src-2", Name: "disabled", Type: database.SourceTypeWhatsApp, Identifier: "group-2", IsActive: false},
	}}
	candidateRepo := &fakeCandidateRepo{
		candidates:   map[string]*database.Candidate{},
		seenLocators: map[string]bool{},
	}
	scheduler := &fakeScheduler{}
	publisher := &fakePublisher{}

	handler := NewHandler(sourceRepo, candidateRepo, &fakeDeadLetterRepo{}, &fakeAuditRepo{},
		review.NewService(candidateRepo, publisher), scheduler, testWebhookSecret, 24*time.Hour)

	return &testEnv{
		router:        NewServer(handler, testAPIKey, testWebhookSecret),
		sourceRepo:    sourceRepo,
		candidateRepo: candidateRepo,
		scheduler:     scheduler,
		publisher:     publisher,
	}
}

func (e *testEnv) postWebhook(t *testing.T, source string, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/"+source, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func webhookBody(t *testing.T, messageID, text string, sentAt time.Time) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"message_id": messageID,
		"chat_id":    "group-1",
		"text":       text,
		"timestamp":  sentAt.Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("Failed to marshal webhook body: %v", err)
	}
	return body
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return response
}

func TestHandleWebhook_Queued(t *testing.T) {
	env := newTestEnv()
	body := webhookBody(t, "m1", "Casting call for lead role, submit headshots by Dec 1", time.Now().UTC())

	w := env.postWebhook(t, "casting-group", body, signBody(body, testWebhookSecret))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeResponse(t, w)["status"]; got != "queued" {
		t.Errorf("Expected status 'queued', got %v", got)
	}

	if len(env.scheduler.jobs) != 1 {
		t.Fatalf("Expected 1 job queued, got %d", len(env.scheduler.jobs))
	}
	job := env.scheduler.jobs[0]
	if job.SourceID != "src-1" || job.SourceLocator != "m1" {
		t.Errorf("Unexpected job provenance: %+v", job)
	}
}

func TestHandleWebhook_BadSignature(t *testing.T) {
	env := newTestEnv()
	body := webhookBody(t, "m1", "Casting call for lead role", time.Now().UTC())

	w := env.postWebhook(t, "casting-group", body, signBody(body, "wrong-secret"))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
	if len(env.scheduler.jobs) != 0 {
		t.Error("Expected nothing queued on bad signature")
	}
}

func TestHandleWebhook_MissingSignature(t *testing.T) {
	env := newTestEnv()
	body := webhookBody(t, "m1", "Casting call for lead role", time.Now().UTC())

	w := env.postWebhook(t, "casting-group", body, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestHandleWebhook_Malformed(t *testing.T) {
	env := newTestEnv()
	body := []byte(`{"chat_id":"group-1"}`)

	w := env.postWebhook(t, "casting-group", body, signBody(body, testWebhookSecret))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestHandleWebhook_Stale(t *testing.T) {
	env := newTestEnv()
	body := webhookBody(t, "m1", "Casting call for lead role", time.Now().UTC().Add(-48*time.Hour))

	w := env.postWebhook(t, "casting-group", body, signBody(body, testWebhookSecret))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got := decodeResponse(t, w)["status"]; got != "skipped:old_message" {
		t.Errorf("Expected status 'skipped:old_message', got %v", got)
	}
	if len(env.scheduler.jobs) != 0 {
		t.Error("Expected nothing queued for stale message")
	}
}

func TestHandleWebhook_DuplicateReplay(t *testing.T) {
	env := newTestEnv()
	env.candidateRepo.seenLocators["m1"] = true
	body := webhookBody(t, "m1", "Casting call for lead role", time.Now().UTC())

	w := env.postWebhook(t, "casting-group", body, signBody(body, testWebhookSecret))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got := decodeResponse(t, w)["status"]; got != "skipped:duplicate" {
		t.Errorf("Expected status 'skipped:duplicate', got %v", got)
	}
	if len(env.scheduler.jobs) != 0 {
		t.Error("Expected nothing queued for replayed message")
	}
}

func TestHandleWebhook_Filtered(t *testing.T) {
	env := newTestEnv()
	body := webhookBody(t, "m1", "Congratulations on wrapping filming!", time.Now().UTC())

	w := env.postWebhook(t, "casting-group", body, signBody(body, testWebhookSecret))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got := decodeResponse(t, w)["status"]; got != "skipped:filtered" {
		t.Errorf("Expected status 'skipped:filtered', got %v", got)
	}
	if len(env.scheduler.jobs) != 0 {
		t.Error("Expected nothing queued for filtered message")
	}
}

func TestHandleWebhook_UnknownSource(t *testing.T) {
	env := newTestEnv()
	body := webhookBody(t, "m1", "Casting call for lead role", time.Now().UTC())

	w := env.postWebhook(t, "no-such-source", body, signBody(body, testWebhookSecret))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestHandleWebhook_InactiveSource(t *testing.T) {
	env := newTestEnv()
	body := webhookBody(t, "m1", "Casting call for lead role", time.Now().UTC())

	w := env.postWebhook(t, "disabled", body, signBody(body, testWebhookSecret))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestHandleWebhook_QueueUnavailable(t *testing.T) {
	env := newTestEnv()
	env.scheduler.enqueueErr = errors.New("queue full")
	body := webhookBody(t, "m1", "Casting call for lead role", time.Now().UTC())

	w := env.postWebhook(t, "casting-group", body, signBody(body, testWebhookSecret))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
}

func apiRequest(method, path string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-API-Key", testAPIKey)
	return req
}

func TestReviewerEndpoints_RequireAPIKey(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest("GET", "/api/candidates/pending", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/candidates/pending", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong key, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/candidates/pending", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with bearer token, got %d", w.Code)
	}
}

func TestAPIListPendingCandidates(t *testing.T) {
	env := newTestEnv()
	env.candidateRepo.candidates["c1"] = &database.Candidate{
		ID:     "c1",
		Title:  "Lead role",
		Status: database.StatusPendingReview,
	}
	env.candidateRepo.candidates["c2"] = &database.Candidate{
		ID:     "c2",
		Title:  "Old role",
		Status: database.StatusPublished,
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, apiRequest("GET", "/api/candidates/pending", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	response := decodeResponse(t, w)
	if count, ok := response["count"].(float64); !ok || int(count) != 1 {
		t.Errorf("Expected count 1, got %v", response["count"])
	}
}

func TestAPIApproveCandidate(t *testing.T) {
	env := newTestEnv()
	env.candidateRepo.candidates["c1"] = &database.Candidate{
		ID:     "c1",
		Title:  "Lead role",
		Status: database.StatusPendingReview,
	}

	req := apiRequest("POST", "/api/candidates/c1/approve", nil)
	req.Header.Set("X-Reviewer", "samira")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	response := decodeResponse(t, w)
	if response["status"] != database.StatusPublished {
		t.Errorf("Expected status %q, got %v", database.StatusPublished, response["status"])
	}
	if response["transitioned"] != true {
		t.Errorf("Expected transitioned=true, got %v", response["transitioned"])
	}
	if response["indexed"] != true {
		t.Errorf("Expected indexed=true, got %v", response["indexed"])
	}

	if len(env.publisher.published) != 1 {
		t.Fatalf("Expected 1 publish, got %d", len(env.publisher.published))
	}
	if env.candidateRepo.candidates["c1"].ReviewedBy != "samira" {
		t.Errorf("Expected reviewer from header, got %q", env.candidateRepo.candidates["c1"].ReviewedBy)
	}
}

func TestAPIApproveCandidate_WithEdits(t *testing.T) {
	env := newTestEnv()
	env.candidateRepo.candidates["c1"] = &database.Candidate{
		ID:     "c1",
		Title:  "Lead role",
		Status: database.StatusPendingReview,
	}

	body := []byte(`{"title":"Supporting role"}`)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, apiRequest("POST", "/api/candidates/c1/approve", body))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if len(env.publisher.published) != 1 {
		t.Fatalf("Expected 1 publish, got %d", len(env.publisher.published))
	}
	if env.publisher.published[0].Title != "Supporting role" {
		t.Errorf("Expected edited title published, got %q", env.publisher.published[0].Title)
	}
}

func TestAPIApproveCandidate_Repeat(t *testing.T) {
	env := newTestEnv()
	env.candidateRepo.candidates["c1"] = &database.Candidate{
		ID:     "c1",
		Status: database.StatusPendingReview,
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, apiRequest("POST", "/api/candidates/c1/approve", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("First approval failed: %d", w.Code)
	}

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, apiRequest("POST", "/api/candidates/c1/approve", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on repeat approval, got %d", w.Code)
	}

	response := decodeResponse(t, w)
	if response["transitioned"] != false {
		t.Errorf("Expected transitioned=false on repeat approval, got %v", response["transitioned"])
	}
	if len(env.publisher.published) != 1 {
		t.Errorf("Expected exactly one publish, got %d", len(env.publisher.published))
	}
}

func TestAPIRejectCandidate(t *testing.T) {
	env := newTestEnv()
	env.candidateRepo.candidates["c1"] = &database.Candidate{
		ID:     "c1",
		Status: database.StatusPendingReview,
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, apiRequest("POST", "/api/candidates/c1/reject", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	response := decodeResponse(t, w)
	if response["status"] != database.StatusRejected {
		t.Errorf("Expected status %q, got %v", database.StatusRejected, response["status"])
	}
	if len(env.publisher.published) != 0 {
		t.Error("Reject must not publish")
	}
}

func TestAPIReviewCandidate_NotFound(t *testing.T) {
	env := newTestEnv()

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, apiRequest("POST", "/api/candidates/missing/approve", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestGetStats(t *testing.T) {
	env := newTestEnv()
	env.candidateRepo.candidates["c1"] = &database.Candidate{ID: "c1", Status: database.StatusPendingReview}
	env.candidateRepo.candidates["c2"] = &database.Candidate{ID: "c2", Status: database.StatusPublished}

	req := httptest.NewRequest("GET", "/stats", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	response := decodeResponse(t, w)
	counts, ok := response["candidates"].(map[string]any)
	if !ok {
		t.Fatalf("Expected candidate counts, got %v", response["candidates"])
	}
	if counts[database.StatusPendingReview] != float64(1) || counts[database.StatusPublished] != float64(1) {
		t.Errorf("Unexpected counts: %v", counts)
	}
}
