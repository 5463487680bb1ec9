package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devricklin/feishu-random-wife/internal/biz/usecase"
)

// MaintenanceScheduler runs the periodic store maintenance
type MaintenanceScheduler struct {
	gameUC *usecase.GameUsecase

	ledgerInterval time.Duration
	decayInterval  time.Duration
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
}

// NewMaintenanceScheduler creates a new maintenance scheduler
func NewMaintenanceScheduler(gameUC *usecase.GameUsecase, ledgerInterval, decayInterval time.Duration) *MaintenanceScheduler {
	if ledgerInterval <= 0 {
		ledgerInterval = time.Minute
	}
	if decayInterval <= 0 {
		decayInterval = 6 * time.Hour
	}
	return &MaintenanceScheduler{
		gameUC:         gameUC,
		ledgerInterval: ledgerInterval,
		decayInterval:  decayInterval,
	}
}

// Start starts the scheduler
func (s *MaintenanceScheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.loop(s.ledgerInterval, s.maintainLedger)
	go s.loop(s.decayInterval, s.decayPopularity)

	fmt.Printf("[Scheduler] Started (ledger every %v, decay every %v)\n", s.ledgerInterval, s.decayInterval)
}

// Stop stops the loops and flushes every store
func (s *MaintenanceScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.gameUC.Close(context.Background())
	fmt.Println("[Scheduler] Stopped")
}

func (s *MaintenanceScheduler) loop(interval time.Duration, task func()) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			task()
		}
	}
}

func (s *MaintenanceScheduler) maintainLedger() {
	if n := s.gameUC.MaintainLedger(s.ctx); n > 0 {
		fmt.Printf("[Scheduler] Evicted %d ledger entries\n", n)
	}
}

func (s *MaintenanceScheduler) decayPopularity() {
	if n := s.gameUC.DecayPopularity(s.ctx); n > 0 {
		fmt.Printf("[Scheduler] Decayed %d popularity targets\n", n)
	}
}
