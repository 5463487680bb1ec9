package domain

import (
	"sort"
	"time"
)

// DateLayout is the day stamp format of the record partition
const DateLayout = "2006-01-02"

// PairingRecord is one assignment of a target to an actor for a day.
// JSON field names match the persisted "wife_records" blob.
type PairingRecord struct {
	ActorID    string    `json:"user_id"`
	TargetID   string    `json:"wife_id"`
	TargetName string    `json:"wife_name"`
	Timestamp  time.Time `json:"timestamp"`
	Forced     bool      `json:"forced"`
}

// GroupRecords holds one group's records for the stamped day
type GroupRecords struct {
	Records []PairingRecord `json:"records"`
}

// RecordBook is the pairing record store. Only the day named by Date is retained;
// a rollover empties every group at once.
type RecordBook struct {
	Date   string                   `json:"date"`
	Groups map[string]*GroupRecords `json:"groups"`
}

// NewRecordBook creates an empty book stamped with now's date
func NewRecordBook(now time.Time) *RecordBook {
	return &RecordBook{
		Date:   now.Format(DateLayout),
		Groups: make(map[string]*GroupRecords),
	}
}

// IsToday reports whether the stamped date matches now's date
func (b *RecordBook) IsToday(now time.Time) bool {
	return b.Date == now.Format(DateLayout)
}

// EnsureToday clears every partition when the stamped date is stale.
// Returns true if a rollover happened.
func (b *RecordBook) EnsureToday(now time.Time) bool {
	if b.Groups == nil {
		b.Groups = make(map[string]*GroupRecords)
	}
	if b.IsToday(now) {
		return false
	}
	b.Date = now.Format(DateLayout)
	b.Groups = make(map[string]*GroupRecords)
	return true
}

// GroupRecords returns a copy of a group's records for the stamped day
func (b *RecordBook) GroupRecords(groupID string) []PairingRecord {
	g, ok := b.Groups[groupID]
	if !ok {
		return nil
	}
	out := make([]PairingRecord, len(g.Records))
	copy(out, g.Records)
	return out
}

// ActorRecords returns the records an actor holds in a group
func (b *RecordBook) ActorRecords(groupID, actorID string) []PairingRecord {
	g, ok := b.Groups[groupID]
	if !ok {
		return nil
	}
	var out []PairingRecord
	for _, r := range g.Records {
		if r.ActorID == actorID {
			out = append(out, r)
		}
	}
	return out
}

// HasRecord reports whether the actor already holds a record in the group
func (b *RecordBook) HasRecord(groupID, actorID string) bool {
	return len(b.ActorRecords(groupID, actorID)) > 0
}

// Append adds a record to a group's partition
func (b *RecordBook) Append(groupID string, rec PairingRecord) {
	if b.Groups == nil {
		b.Groups = make(map[string]*GroupRecords)
	}
	g, ok := b.Groups[groupID]
	if !ok {
		g = &GroupRecords{}
		b.Groups[groupID] = g
	}
	g.Records = append(g.Records, rec)
}

// AddReciprocal records target -> actor unless the target already holds a record.
// Never overwrites. The reciprocal record is never marked forced. Returns true if a record was added.
func (b *RecordBook) AddReciprocal(groupID string, rec PairingRecord, actorName string) bool {
	if rec.TargetID == rec.ActorID || b.HasRecord(groupID, rec.TargetID) {
		return false
	}
	b.Append(groupID, PairingRecord{
		ActorID:    rec.TargetID,
		TargetID:   rec.ActorID,
		TargetName: actorName,
		Timestamp:  rec.Timestamp,
	})
	return true
}

// RemoveActor drops every record the actor holds in a group
func (b *RecordBook) RemoveActor(groupID, actorID string) int {
	g, ok := b.Groups[groupID]
	if !ok {
		return 0
	}
	kept := g.Records[:0]
	removed := 0
	for _, r := range g.Records {
		if r.ActorID == actorID {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	g.Records = kept
	return removed
}

// ResetGroup deletes a group's partition
func (b *RecordBook) ResetGroup(groupID string) int {
	g, ok := b.Groups[groupID]
	if !ok {
		return 0
	}
	delete(b.Groups, groupID)
	return len(g.Records)
}

// Total counts records across all groups
func (b *RecordBook) Total() int {
	total := 0
	for _, g := range b.Groups {
		total += len(g.Records)
	}
	return total
}

type bookEntry struct {
	groupID string
	rec     PairingRecord
}

// Trim keeps only the newest max records across all groups combined.
// Returns how many were removed.
func (b *RecordBook) Trim(max int) int {
	if max < 0 {
		max = 0
	}
	total := b.Total()
	if total <= max {
		return 0
	}

	groupIDs := make([]string, 0, len(b.Groups))
	for gid := range b.Groups {
		groupIDs = append(groupIDs, gid)
	}
	sort.Strings(groupIDs)

	entries := make([]bookEntry, 0, total)
	for _, gid := range groupIDs {
		for _, r := range b.Groups[gid].Records {
			entries = append(entries, bookEntry{groupID: gid, rec: r})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].rec.Timestamp.Before(entries[j].rec.Timestamp)
	})

	kept := entries[total-max:]
	rebuilt := make(map[string]*GroupRecords, len(b.Groups))
	for _, e := range kept {
		g, ok := rebuilt[e.groupID]
		if !ok {
			g = &GroupRecords{}
			rebuilt[e.groupID] = g
		}
		g.Records = append(g.Records, e.rec)
	}
	b.Groups = rebuilt
	return total - max
}
