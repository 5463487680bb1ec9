package usecase

import (
	"math/rand/v2"
	"time"
)

// Clock supplies the current time in the game's location
type Clock interface {
	Now() time.Time
}

// Random supplies uniform choices
type Random interface {
	// IntN returns a value in [0, n)
	IntN(n int) int
}

type systemClock struct {
	loc *time.Location
}

// NewSystemClock returns a wall clock reporting times in loc
func NewSystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

type globalRandom struct{}

// NewRandom returns the process-wide non-cryptographic generator
func NewRandom() Random {
	return globalRandom{}
}

func (globalRandom) IntN(n int) int {
	return rand.IntN(n)
}
