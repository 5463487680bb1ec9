package data

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/devricklin/feishu-random-wife/internal/biz/domain"
	"github.com/devricklin/feishu-random-wife/internal/biz/repo"
)

func TestStateRepo_SaveLoad(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "state.db")
	r, err := NewStateRepo(dbPath)
	if err != nil {
		t.Fatalf("Failed to open state repo: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	var ledger domain.ActivityLedger
	found, err := r.Load(ctx, repo.StateKeyLedger, &ledger)
	if err != nil || found {
		t.Fatalf("Expected nothing stored, got found=%v err=%v", found, err)
	}

	if err := r.Save(ctx, repo.StateKeyLedger, domain.ActivityLedger{"g1": {"a": 100}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := r.Save(ctx, repo.StateKeyLedger, domain.ActivityLedger{"g1": {"a": 200, "b": 150}}); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}

	found, err = r.Load(ctx, repo.StateKeyLedger, &ledger)
	if err != nil || !found {
		t.Fatalf("Expected stored ledger, got found=%v err=%v", found, err)
	}
	if ledger["g1"]["a"] != 200 || ledger["g1"]["b"] != 150 {
		t.Errorf("Unexpected ledger %v", ledger)
	}
}

func TestStateRepo_RecordBookRoundTrip(t *testing.T) {
	r, err := NewStateRepo(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Failed to open state repo: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	book := domain.NewRecordBook(now)
	book.Append("g1", domain.PairingRecord{ActorID: "a", TargetID: "b", TargetName: "Bob", Timestamp: now, Forced: true})

	if err := r.Save(ctx, repo.StateKeyRecords, book); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := &domain.RecordBook{}
	if _, err := r.Load(ctx, repo.StateKeyRecords, loaded); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got := loaded.ActorRecords("g1", "a")
	if loaded.Date != "2024-05-01" || len(got) != 1 || !got[0].Forced || !got[0].Timestamp.Equal(now) {
		t.Errorf("Unexpected record book %+v", loaded)
	}
}
