package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devricklin/feishu-random-wife/internal/biz/repo"
)

const withdrawTimeout = 10 * time.Second

// Withdrawer recalls sent messages after a delay.
// Every pending recall has a handle and all of them can be cancelled at shutdown.
type Withdrawer struct {
	messageRepo repo.MessageRepo
	delay       time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

// NewWithdrawer creates a withdrawer
func NewWithdrawer(messageRepo repo.MessageRepo, delay time.Duration) *Withdrawer {
	if delay <= 0 {
		delay = 30 * time.Second
	}
	return &Withdrawer{
		messageRepo: messageRepo,
		delay:       delay,
		pending:     make(map[string]*time.Timer),
	}
}

// Schedule recalls msgID after the delay. Returns the handle, or "" once closed.
func (w *Withdrawer) Schedule(msgID string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ""
	}

	handle := uuid.NewString()
	w.pending[handle] = time.AfterFunc(w.delay, func() {
		w.fire(handle, msgID)
	})
	return handle
}

func (w *Withdrawer) fire(handle, msgID string) {
	w.mu.Lock()
	_, ok := w.pending[handle]
	delete(w.pending, handle)
	w.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), withdrawTimeout)
	defer cancel()
	if err := w.messageRepo.DeleteMessage(ctx, msgID); err != nil {
		fmt.Printf("[Withdraw] Failed to recall %s: %v\n", msgID, err)
		return
	}
	fmt.Printf("[Withdraw] Recalled %s\n", msgID)
}

// Cancel stops one pending recall
func (w *Withdrawer) Cancel(handle string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.pending[handle]
	if !ok {
		return false
	}
	t.Stop()
	delete(w.pending, handle)
	return true
}

// Pending returns the number of scheduled recalls
func (w *Withdrawer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// CancelAll stops every pending recall and refuses new ones
func (w *Withdrawer) CancelAll() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	n := 0
	for handle, t := range w.pending {
		if t.Stop() {
			n++
		}
		delete(w.pending, handle)
	}
	return n
}
