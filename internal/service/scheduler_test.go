package service

import (
	"context"
	"testing"
	"time"

	"github.com/devricklin/feishu-random-wife/internal/biz/repo"
	"github.com/devricklin/feishu-random-wife/internal/biz/usecase"
)

func (r *memoryStateRepo) has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.blobs[key]
	return ok
}

func TestMaintenanceScheduler_FlushesLedger(t *testing.T) {
	state := &memoryStateRepo{}
	gameUC := usecase.NewGameUsecase(state, nil, usecase.DefaultGameConfig(), nil, nil)
	gameUC.Observe("oc_group", "ou_alice", "ou_bot")

	s := NewMaintenanceScheduler(gameUC, 10*time.Millisecond, time.Hour)
	s.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for !state.has(repo.StateKeyLedger) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if !state.has(repo.StateKeyLedger) {
		t.Fatal("Expected the ledger to be flushed by the maintenance loop")
	}
}

func TestMaintenanceScheduler_StopFlushesEveryStore(t *testing.T) {
	state := &memoryStateRepo{}
	gameUC := usecase.NewGameUsecase(state, nil, usecase.DefaultGameConfig(), nil, nil)

	s := NewMaintenanceScheduler(gameUC, time.Hour, time.Hour)
	s.Start(context.Background())
	s.Stop()

	for _, key := range []string{repo.StateKeyRecords, repo.StateKeyLedger, repo.StateKeyCooldowns, repo.StateKeyPopularity} {
		if !state.has(key) {
			t.Errorf("Expected %s to be written on stop", key)
		}
	}
}
