package domain

import (
	"sort"
	"time"
)

// ActivityWindow is how long a participant stays eligible after their last message
const ActivityWindow = 30 * 24 * time.Hour

// ActivityLedger maps group_id -> participant_id -> last seen unix timestamp.
// Persisted as-is under the "active_users" key.
type ActivityLedger map[string]map[string]int64

// Observe records that userID spoke in groupID at now.
// The sentinel and the bot itself are never stored. A timestamp never moves backwards.
func (l ActivityLedger) Observe(groupID, userID, botID string, now time.Time) bool {
	if userID == "" || userID == SentinelID || (botID != "" && userID == botID) {
		return false
	}
	users, ok := l[groupID]
	if !ok {
		users = make(map[string]int64)
		l[groupID] = users
	}
	ts := now.Unix()
	if prev, seen := users[userID]; seen && prev >= ts {
		return false
	}
	users[userID] = ts
	return true
}

// LastSeen returns when userID was last observed in groupID
func (l ActivityLedger) LastSeen(groupID, userID string) (time.Time, bool) {
	ts, ok := l[groupID][userID]
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(ts, 0), true
}

// PruneGroup removes entries whose age is at least window. Returns how many were removed.
func (l ActivityLedger) PruneGroup(groupID string, now time.Time, window time.Duration) int {
	users, ok := l[groupID]
	if !ok {
		return 0
	}
	cutoff := now.Add(-window).Unix()
	removed := 0
	for uid, ts := range users {
		if ts <= cutoff {
			delete(users, uid)
			removed++
		}
	}
	return removed
}

// Candidates returns the group's participant ids in a stable order
func (l ActivityLedger) Candidates(groupID string) []string {
	users := l[groupID]
	ids := make([]string, 0, len(users))
	for uid := range users {
		ids = append(ids, uid)
	}
	sort.Strings(ids)
	return ids
}

// Remove deletes the given participants from a group
func (l ActivityLedger) Remove(groupID string, userIDs []string) int {
	users, ok := l[groupID]
	if !ok {
		return 0
	}
	removed := 0
	for _, uid := range userIDs {
		if _, exists := users[uid]; exists {
			delete(users, uid)
			removed++
		}
	}
	return removed
}

// Total counts entries across all groups
func (l ActivityLedger) Total() int {
	total := 0
	for _, users := range l {
		total += len(users)
	}
	return total
}

type ledgerEntry struct {
	groupID string
	userID  string
	ts      int64
}

// CapacityEvict enforces a global cap across every group: when the ledger holds more than
// maxTotal entries only the newest maxTotal survive. Ties on timestamp are broken by
// (group, participant) so the result is deterministic. Returns how many were evicted.
func (l ActivityLedger) CapacityEvict(maxTotal int) int {
	if maxTotal < 0 {
		maxTotal = 0
	}
	total := l.Total()
	if total <= maxTotal {
		return 0
	}

	entries := make([]ledgerEntry, 0, total)
	for gid, users := range l {
		for uid, ts := range users {
			entries = append(entries, ledgerEntry{groupID: gid, userID: uid, ts: ts})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.ts != b.ts {
			return a.ts < b.ts
		}
		if a.groupID != b.groupID {
			return a.groupID < b.groupID
		}
		return a.userID < b.userID
	})

	evicted := entries[:total-maxTotal]
	for _, e := range evicted {
		delete(l[e.groupID], e.userID)
	}
	for gid, users := range l {
		if len(users) == 0 {
			delete(l, gid)
		}
	}
	return len(evicted)
}
