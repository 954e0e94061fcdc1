package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tansaku-dev/tansaku/internal/models"
)

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestReopenKeepsState(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	study, err := s.CreateStudy(ctx, "persisted", []models.Direction{models.DirectionMinimize})
	if err != nil {
		t.Fatalf("CreateStudy failed: %v", err)
	}
	if _, err := s.CreateTrial(ctx, study.ID, nil); err != nil {
		t.Fatalf("CreateTrial failed: %v", err)
	}
	s.Close()

	// A second process sees the same state.
	s2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer s2.Close()

	got, err := s2.GetStudy(ctx, "persisted")
	if err != nil {
		t.Fatalf("GetStudy after reopen failed: %v", err)
	}
	trials, err := s2.ListTrials(ctx, got.ID)
	if err != nil {
		t.Fatalf("ListTrials after reopen failed: %v", err)
	}
	if len(trials) != 1 || trials[0].Number != 0 {
		t.Errorf("Expected the persisted trial, got %v", trials)
	}

	// Numbering continues where the first process left off.
	trial, err := s2.CreateTrial(ctx, got.ID, nil)
	if err != nil {
		t.Fatalf("CreateTrial after reopen failed: %v", err)
	}
	if trial.Number != 1 {
		t.Errorf("Expected number 1 after reopen, got %d", trial.Number)
	}
}
