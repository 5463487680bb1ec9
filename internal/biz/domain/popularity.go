package domain

import (
	"sort"
	"time"
)

const (
	// PopularityWindow is how long a forced reassignment event counts
	PopularityWindow = 30 * 24 * time.Hour
	// CelebrityThreshold is the count above which inactivity never prunes a target
	CelebrityThreshold = 4
	// InactivityGrace is how long a low-count target may stay silent
	InactivityGrace = 7 * 24 * time.Hour
	// RankingSize is how many targets a ranking returns
	RankingSize = 10
)

// PopularityBook maps group_id -> target_id -> event unix timestamps.
// Persisted under the "rbq_stats" key.
type PopularityBook map[string]map[string][]int64

// LastSeenFunc reports a participant's last chat activity
type LastSeenFunc func(userID string) (time.Time, bool)

// Record appends one event for target. Callers run Decay afterwards.
func (p PopularityBook) Record(groupID, targetID string, now time.Time) {
	targets, ok := p[groupID]
	if !ok {
		targets = make(map[string][]int64)
		p[groupID] = targets
	}
	targets[targetID] = append(targets[targetID], now.Unix())
}

// Decay drops events older than the window, removes targets left with none, and removes
// low-count targets whose last activity is older than the grace period or unknown.
// Returns how many targets were removed.
func (p PopularityBook) Decay(groupID string, now time.Time, lastSeen LastSeenFunc) int {
	targets, ok := p[groupID]
	if !ok {
		return 0
	}
	cutoff := now.Add(-PopularityWindow).Unix()
	removed := 0
	for tid, events := range targets {
		kept := events[:0]
		for _, ts := range events {
			if ts >= cutoff {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(targets, tid)
			removed++
			continue
		}
		targets[tid] = kept

		if len(kept) > CelebrityThreshold {
			continue
		}
		if seen, ok := lastSeen(tid); !ok || now.Sub(seen) > InactivityGrace {
			delete(targets, tid)
			removed++
		}
	}
	if len(targets) == 0 {
		delete(p, groupID)
	}
	return removed
}

// Count returns a target's retained event count
func (p PopularityBook) Count(groupID, targetID string) int {
	return len(p[groupID][targetID])
}

// Total counts targets across all groups
func (p PopularityBook) Total() int {
	total := 0
	for _, targets := range p {
		total += len(targets)
	}
	return total
}

// RankEntry is one row of a popularity ranking
type RankEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
}

// Ranking orders targets by count descending and keeps the top RankingSize.
// Ties share a rank; the next lower count takes its 1-based position.
func (p PopularityBook) Ranking(groupID string) []RankEntry {
	targets := p[groupID]
	entries := make([]RankEntry, 0, len(targets))
	for tid, events := range targets {
		entries = append(entries, RankEntry{UserID: tid, Count: len(events)})
	}
	return RankCounts(entries)
}

// RankCounts sorts and ranks arbitrary counts
func RankCounts(entries []RankEntry) []RankEntry {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].UserID < entries[j].UserID
	})
	if len(entries) > RankingSize {
		entries = entries[:RankingSize]
	}
	for i := range entries {
		if i > 0 && entries[i].Count == entries[i-1].Count {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
	return entries
}
