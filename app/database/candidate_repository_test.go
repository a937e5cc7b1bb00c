package database

import (
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func newCandidate(title, contentHash string) Candidate {
	return Candidate{
		Title:         title,
		Description:   "Feature film",
		Location:      "Dubai",
		ContentHash:   contentHash,
		IsAggregated:  true,
		SourceLocator: "msg-" + contentHash,
	}
}

func TestCreateCandidate(t *testing.T) {
	repo := NewCandidateRepository(setupTestDB(t))

	id, created, err := repo.CreateCandidate(newCandidate("Lead role", "hash-1"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !created {
		t.Fatal("Expected candidate to be created")
	}
	if id == "" {
		t.Fatal("Expected generated id")
	}

	candidate, err := repo.GetCandidate(id)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if candidate == nil {
		t.Fatal("Expected candidate to be found")
	}
	if candidate.Status != StatusPendingReview {
		t.Errorf("Expected status %q, got %q", StatusPendingReview, candidate.Status)
	}
	if candidate.Title != "Lead role" {
		t.Errorf("Expected title 'Lead role', got %q", candidate.Title)
	}
	if !candidate.IsAggregated {
		t.Error("Expected aggregated flag")
	}
}

func TestCreateCandidate_DuplicateHashCollapses(t *testing.T) {
	repo := NewCandidateRepository(setupTestDB(t))

	if _, created, err := repo.CreateCandidate(newCandidate("Lead role", "hash-1")); err != nil || !created {
		t.Fatalf("First insert failed: created=%v err=%v", created, err)
	}

	_, created, err := repo.CreateCandidate(newCandidate("Lead role reworded", "hash-1"))
	if err != nil {
		t.Fatalf("Expected no error on duplicate hash, got %v", err)
	}
	if created {
		t.Error("Expected duplicate hash insert to be a no-op")
	}

	counts, err := repo.GetStatusCounts()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if counts[StatusPendingReview] != 1 {
		t.Errorf("Expected 1 pending candidate, got %d", counts[StatusPendingReview])
	}
}

func TestCheckDuplicate(t *testing.T) {
	repo := NewCandidateRepository(setupTestDB(t))

	id, _, err := repo.CreateCandidate(newCandidate("Lead role", "hash-1"))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	isDuplicate, duplicateID, err := repo.CheckDuplicate("hash-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !isDuplicate {
		t.Error("Expected duplicate to be reported")
	}
	if duplicateID == nil || *duplicateID != id {
		t.Errorf("Expected duplicate id %q, got %v", id, duplicateID)
	}

	isDuplicate, _, err = repo.CheckDuplicate("hash-2")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if isDuplicate {
		t.Error("Expected unknown hash to not be a duplicate")
	}
}

func TestHasSourceLocator(t *testing.T) {
	repo := NewCandidateRepository(setupTestDB(t))

	if _, _, err := repo.CreateCandidate(newCandidate("Lead role", "hash-1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	seen, err := repo.HasSourceLocator("msg-hash-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !seen {
		t.Error("Expected locator to be seen")
	}

	seen, err = repo.HasSourceLocator("msg-unknown")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if seen {
		t.Error("Expected unknown locator to not be seen")
	}
}

func TestTransitionStatus(t *testing.T) {
	repo := NewCandidateRepository(setupTestDB(t))

	id, _, err := repo.CreateCandidate(newCandidate("Lead role", "hash-1"))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	transitioned, err := repo.TransitionStatus(id, StatusPendingReview, StatusPublished, "reviewer-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !transitioned {
		t.Fatal("Expected first transition to succeed")
	}

	// A second reviewer acting on the same candidate loses the guard
	transitioned, err = repo.TransitionStatus(id, StatusPendingReview, StatusRejected, "reviewer-2")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if transitioned {
		t.Error("Expected transition on a terminal candidate to be refused")
	}

	candidate, err := repo.GetCandidate(id)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if candidate.Status != StatusPublished {
		t.Errorf("Expected status %q, got %q", StatusPublished, candidate.Status)
	}
	if candidate.ReviewedBy != "reviewer-1" {
		t.Errorf("Expected reviewer 'reviewer-1', got %q", candidate.ReviewedBy)
	}
	if candidate.ReviewedAt == nil {
		t.Error("Expected reviewed_at to be set")
	}
}

func TestUpdateFields(t *testing.T) {
	repo := NewCandidateRepository(setupTestDB(t))

	id, _, err := repo.CreateCandidate(newCandidate("Lead role", "hash-1"))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	title := "Supporting role"
	location := "Cairo"
	updated, err := repo.UpdateFields(id, CandidateEdits{Title: &title, Location: &location})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !updated {
		t.Fatal("Expected pending candidate to be editable")
	}

	candidate, err := repo.GetCandidate(id)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if candidate.Title != "Supporting role" || candidate.Location != "Cairo" {
		t.Errorf("Expected edits applied, got title=%q location=%q", candidate.Title, candidate.Location)
	}
	if candidate.Description != "Feature film" {
		t.Errorf("Expected untouched field preserved, got %q", candidate.Description)
	}
}

func TestUpdateFields_TerminalCandidateRefused(t *testing.T) {
	repo := NewCandidateRepository(setupTestDB(t))

	id, _, err := repo.CreateCandidate(newCandidate("Lead role", "hash-1"))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := repo.TransitionStatus(id, StatusPendingReview, StatusRejected, "reviewer-1"); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	title := "Edited title"
	updated, err := repo.UpdateFields(id, CandidateEdits{Title: &title})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if updated {
		t.Error("Expected edit on terminal candidate to be refused")
	}
}

func TestGetPendingCandidates(t *testing.T) {
	repo := NewCandidateRepository(setupTestDB(t))

	id1, _, err := repo.CreateCandidate(newCandidate("First", "hash-1"))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	id2, _, err := repo.CreateCandidate(newCandidate("Second", "hash-2"))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := repo.TransitionStatus(id2, StatusPendingReview, StatusPublished, "reviewer-1"); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	pending, err := repo.GetPendingCandidates(10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending candidate, got %d", len(pending))
	}
	if pending[0].ID != id1 {
		t.Errorf("Expected candidate %q, got %q", id1, pending[0].ID)
	}
}

func TestUpsertSourceAndWatermark(t *testing.T) {
	repo := NewSourceRepository(setupTestDB(t))

	id, err := repo.UpsertSource("casting-group", SourceTypeWhatsApp, "group-1", true)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Re-registering the same name updates in place
	sameID, err := repo.UpsertSource("casting-group", SourceTypeWhatsApp, "group-2", false)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if sameID != id {
		t.Errorf("Expected stable id %q, got %q", id, sameID)
	}

	source, err := repo.GetSource("casting-group")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if source.Identifier != "group-2" {
		t.Errorf("Expected updated identifier, got %q", source.Identifier)
	}
	if source.IsActive {
		t.Error("Expected source deactivated")
	}
	if source.LastProcessedAt != nil {
		t.Error("Expected fresh source without a watermark")
	}

	later := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	if err := repo.UpdateWatermark(id, later); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	// A stale sweep must not move the watermark backward
	if err := repo.UpdateWatermark(id, earlier); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	source, err = repo.GetSource("casting-group")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if source.LastProcessedAt == nil {
		t.Fatal("Expected watermark to be set")
	}
	if !source.LastProcessedAt.UTC().Equal(later) {
		t.Errorf("Expected watermark %v, got %v", later, source.LastProcessedAt.UTC())
	}
}

func TestGetActiveSources(t *testing.T) {
	repo := NewSourceRepository(setupTestDB(t))

	if _, err := repo.UpsertSource("portal", SourceTypeWeb, "https://castings.example", true); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := repo.UpsertSource("group", SourceTypeWhatsApp, "group-1", true); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := repo.UpsertSource("paused-portal", SourceTypeWeb, "https://old.example", false); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	webSources, err := repo.GetActiveSources(SourceTypeWeb)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(webSources) != 1 || webSources[0].Name != "portal" {
		t.Errorf("Expected only the active web source, got %+v", webSources)
	}
}
