package domain

import "time"

// CooldownBook maps group_id -> actor_id -> last forced unix timestamp.
// Persisted under the "forced_marriage" key.
type CooldownBook map[string]map[string]int64

// LastForced returns the actor's last forced reassignment in the group, in loc
func (c CooldownBook) LastForced(groupID, actorID string, loc *time.Location) (time.Time, bool) {
	ts, ok := c[groupID][actorID]
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(ts, 0).In(loc), true
}

// Stamp records a successful forced reassignment
func (c CooldownBook) Stamp(groupID, actorID string, now time.Time) {
	actors, ok := c[groupID]
	if !ok {
		actors = make(map[string]int64)
		c[groupID] = actors
	}
	actors[actorID] = now.Unix()
}

// ResetGroup clears every cooldown in a group. Returns false if nobody was cooling down.
func (c CooldownBook) ResetGroup(groupID string) bool {
	actors, ok := c[groupID]
	if !ok || len(actors) == 0 {
		return false
	}
	delete(c, groupID)
	return true
}

// Total counts stamps across all groups
func (c CooldownBook) Total() int {
	total := 0
	for _, actors := range c {
		total += len(actors)
	}
	return total
}

// CooldownResetAt is local midnight of last's day plus days.
// last must already be in the configured location.
func CooldownResetAt(last time.Time, days int) time.Time {
	y, m, d := last.Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, last.Location())
}

// CooldownRemaining returns how long until the actor may force again; zero means eligible.
func CooldownRemaining(last time.Time, days int, now time.Time) time.Duration {
	remaining := CooldownResetAt(last, days).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// WaitBreakdown is a remaining duration split for display
type WaitBreakdown struct {
	Days    int
	Hours   int
	Minutes int
}

// SplitRemaining decomposes d by integer division, never rounding up
func SplitRemaining(d time.Duration) WaitBreakdown {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return WaitBreakdown{
		Days:    int(secs / 86400),
		Hours:   int(secs % 86400 / 3600),
		Minutes: int(secs % 3600 / 60),
	}
}
