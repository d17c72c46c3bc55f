package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/porterhq/porter-core/internal/infrastructure/database"
	_ "github.com/porterhq/porter-core/migrations" // register embedded schema
)

func setupRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "journal_test.db"),
		WALMode:     true,
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating database: %v", err)
	}
	return NewRepository(db.DB)
}

func TestRecordAndQueryTransitions(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.RecordTransition(ctx, "gate", "open", "chat"); err != nil {
		t.Fatalf("RecordTransition() error: %v", err)
	}
	if err := repo.RecordTransition(ctx, "gate", "closed", "device"); err != nil {
		t.Fatalf("RecordTransition() error: %v", err)
	}
	if err := repo.RecordTransition(ctx, "light", "on", "voice"); err != nil {
		t.Fatalf("RecordTransition() error: %v", err)
	}

	got, err := repo.Transitions(ctx, "gate", 10)
	if err != nil {
		t.Fatalf("Transitions() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Transitions(gate) returned %d rows, want 2", len(got))
	}
	// Newest first.
	if got[0].State != "closed" || got[0].Source != "device" {
		t.Errorf("newest transition = %s/%s, want closed/device", got[0].State, got[0].Source)
	}
	if got[1].State != "open" || got[1].Source != "chat" {
		t.Errorf("oldest transition = %s/%s, want open/chat", got[1].State, got[1].Source)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("transition timestamp not populated")
	}
}

func TestRecordTransitionValidation(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.RecordTransition(ctx, "", "open", "chat"); err == nil {
		t.Error("RecordTransition() with empty device should fail")
	}

	// Empty source defaults to device.
	if err := repo.RecordTransition(ctx, "gate", "open", ""); err != nil {
		t.Fatalf("RecordTransition() error: %v", err)
	}
	got, err := repo.Transitions(ctx, "gate", 1)
	if err != nil {
		t.Fatalf("Transitions() error: %v", err)
	}
	if got[0].Source != "device" {
		t.Errorf("defaulted source = %q, want device", got[0].Source)
	}
}

func TestRecordAndQueryDecisions(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.RecordDecision(ctx, "confirmed_with_face", 3, 8*time.Second); err != nil {
		t.Fatalf("RecordDecision() error: %v", err)
	}
	if err := repo.RecordDecision(ctx, "no_person", 0, 12*time.Second); err != nil {
		t.Fatalf("RecordDecision() error: %v", err)
	}

	got, err := repo.Decisions(ctx, 10)
	if err != nil {
		t.Fatalf("Decisions() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Decisions() returned %d rows, want 2", len(got))
	}
	if got[0].Outcome != "no_person" {
		t.Errorf("newest decision = %q, want no_person", got[0].Outcome)
	}
	if got[1].PositiveCount != 3 || got[1].DurationMS != 8000 {
		t.Errorf("decision detail = %d positives / %dms, want 3 / 8000ms",
			got[1].PositiveCount, got[1].DurationMS)
	}
}

func TestRecordDecisionValidation(t *testing.T) {
	repo := setupRepo(t)

	if err := repo.RecordDecision(context.Background(), "", 0, 0); err == nil {
		t.Error("RecordDecision() with empty outcome should fail")
	}
}

func TestQueryLimitClamping(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.RecordDecision(ctx, "no_person", 0, time.Second); err != nil {
			t.Fatalf("RecordDecision() error: %v", err)
		}
	}

	got, err := repo.Decisions(ctx, 2)
	if err != nil {
		t.Fatalf("Decisions() error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Decisions(limit=2) returned %d rows", len(got))
	}

	// Zero limit falls back to the default, not zero rows.
	got, err = repo.Decisions(ctx, 0)
	if err != nil {
		t.Fatalf("Decisions() error: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("Decisions(limit=0) returned %d rows, want 5", len(got))
	}
}

func TestPrune(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.RecordTransition(ctx, "gate", "open", "device"); err != nil {
		t.Fatalf("RecordTransition() error: %v", err)
	}
	if err := repo.RecordDecision(ctx, "no_person", 0, time.Second); err != nil {
		t.Fatalf("RecordDecision() error: %v", err)
	}

	// Fresh rows survive a long retention window.
	deleted, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Prune(24h) deleted %d fresh rows", deleted)
	}

	if _, err := repo.Prune(ctx, 0); err == nil {
		t.Error("Prune(0) should fail")
	}
}
