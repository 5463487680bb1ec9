package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyPool means no eligible target remains after filtering
	ErrEmptyPool = errors.New("empty pool")
	// ErrGroupNotAllowed means the group is blacklisted or not whitelisted
	ErrGroupNotAllowed = errors.New("group not allowed")
)

// AlreadyDrawnError is returned when the actor's daily quota is used up.
// Record is set when the quota is exactly one.
type AlreadyDrawnError struct {
	Count  int
	Record *PairingRecord
}

func (e *AlreadyDrawnError) Error() string {
	return fmt.Sprintf("already drawn %d time(s) today", e.Count)
}

// CooldownError is returned while the actor's forced reassignment cooldown runs
type CooldownError struct {
	Remaining time.Duration
	ResetAt   time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("still cooling down for %s", e.Remaining)
}

// InvalidTargetReason explains a rejected forced reassignment target
type InvalidTargetReason string

const (
	TargetNone     InvalidTargetReason = "none"
	TargetSelf     InvalidTargetReason = "self"
	TargetExcluded InvalidTargetReason = "excluded"
)

// InvalidTargetError rejects a forced reassignment without mutating state
type InvalidTargetError struct {
	Reason InvalidTargetReason
}

func (e *InvalidTargetError) Error() string {
	return "invalid target: " + string(e.Reason)
}
