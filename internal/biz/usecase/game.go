package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devricklin/feishu-random-wife/internal/biz/domain"
	"github.com/devricklin/feishu-random-wife/internal/biz/repo"
)

// GameConfig is the resolved game configuration
type GameConfig struct {
	DailyLimit         int
	ForceCooldownDays  int
	MaxRecords         int
	MaxActiveUsers     int
	ExcludedUsers      []string
	ForceExcludedUsers []string
	Policy             domain.GroupPolicy
	AutoSetOtherHalf   bool
	AdminUsers         []string
	Location           *time.Location
	MemberQueryTimeout time.Duration
}

// DefaultGameConfig returns the documented defaults
func DefaultGameConfig() GameConfig {
	return GameConfig{
		DailyLimit:         1,
		ForceCooldownDays:  3,
		MaxRecords:         500,
		MaxActiveUsers:     2000,
		Location:           time.Local,
		MemberQueryTimeout: 5 * time.Second,
	}
}

// GameUsecase owns the ledger, record, cooldown and popularity stores.
// Operations on one group are serialized; the stores themselves are guarded by mu.
type GameUsecase struct {
	stateRepo   repo.StateRepo
	messageRepo repo.MessageRepo
	clock       Clock
	rng         Random
	config      GameConfig

	mu          sync.Mutex
	records     *domain.RecordBook
	ledger      domain.ActivityLedger
	cooldowns   domain.CooldownBook
	popularity  domain.PopularityBook
	ledgerDirty bool

	groups groupLocks
}

// NewGameUsecase creates a new game usecase with empty stores. Call Load to restore state.
func NewGameUsecase(
	stateRepo repo.StateRepo,
	messageRepo repo.MessageRepo,
	config GameConfig,
	clock Clock,
	rng Random,
) *GameUsecase {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.MemberQueryTimeout <= 0 {
		config.MemberQueryTimeout = 5 * time.Second
	}
	if clock == nil {
		clock = NewSystemClock(config.Location)
	}
	if rng == nil {
		rng = NewRandom()
	}
	return &GameUsecase{
		stateRepo:   stateRepo,
		messageRepo: messageRepo,
		clock:       clock,
		rng:         rng,
		config:      config,
		records:     domain.NewRecordBook(clock.Now().In(config.Location)),
		ledger:      domain.ActivityLedger{},
		cooldowns:   domain.CooldownBook{},
		popularity:  domain.PopularityBook{},
	}
}

// Config returns the game configuration
func (uc *GameUsecase) Config() GameConfig {
	return uc.config
}

// Allowed checks the group whitelist/blacklist
func (uc *GameUsecase) Allowed(groupID string) bool {
	return uc.config.Policy.Allowed(groupID)
}

// Load restores every store from the state repo. Missing blobs keep their empty defaults.
func (uc *GameUsecase) Load(ctx context.Context) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	records := &domain.RecordBook{}
	if found, err := uc.stateRepo.Load(ctx, repo.StateKeyRecords, records); err != nil {
		return fmt.Errorf("load records: %w", err)
	} else if found {
		if records.Groups == nil {
			records.Groups = make(map[string]*domain.GroupRecords)
		}
		uc.records = records
	}

	ledger := domain.ActivityLedger{}
	if _, err := uc.stateRepo.Load(ctx, repo.StateKeyLedger, &ledger); err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	uc.ledger = ledger

	cooldowns := domain.CooldownBook{}
	if _, err := uc.stateRepo.Load(ctx, repo.StateKeyCooldowns, &cooldowns); err != nil {
		return fmt.Errorf("load cooldowns: %w", err)
	}
	uc.cooldowns = cooldowns

	popularity := domain.PopularityBook{}
	if _, err := uc.stateRepo.Load(ctx, repo.StateKeyPopularity, &popularity); err != nil {
		return fmt.Errorf("load popularity: %w", err)
	}
	uc.popularity = popularity

	fmt.Printf("[GameUC] Loaded state: records=%d (date=%s), ledger=%d, cooldowns=%d, popular=%d\n",
		uc.records.Total(), uc.records.Date, uc.ledger.Total(), uc.cooldowns.Total(), uc.popularity.Total())
	return nil
}

// Observe records chat activity. Persistence is deferred to MaintainLedger or Close.
func (uc *GameUsecase) Observe(groupID, userID, botID string) {
	if !uc.Allowed(groupID) {
		return
	}
	now := uc.now()
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.ledger.Observe(groupID, userID, botID, now) {
		uc.ledgerDirty = true
	}
}

// DrawRequest identifies who draws where
type DrawRequest struct {
	GroupID   string
	ActorID   string
	ActorName string
	BotID     string
}

// DrawResult is a successful draw
type DrawResult struct {
	Record     domain.PairingRecord
	Remaining  int
	Reciprocal bool
}

// Draw picks a random target for the actor.
// Returns *domain.AlreadyDrawnError when the daily quota is used up and domain.ErrEmptyPool
// when nobody is eligible.
func (uc *GameUsecase) Draw(ctx context.Context, req DrawRequest) (*DrawResult, error) {
	if !uc.Allowed(req.GroupID) {
		return nil, domain.ErrGroupNotAllowed
	}
	unlock := uc.groups.lock(req.GroupID)
	defer unlock()

	now := uc.now()
	if err := uc.checkQuota(req.GroupID, req.ActorID, now); err != nil {
		return nil, err
	}

	// The member query runs outside mu so other groups are never blocked on it.
	snap := uc.fetchMembers(ctx, req.GroupID)

	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.records.EnsureToday(now)
	uc.ledger.PruneGroup(req.GroupID, now, domain.ActivityWindow)

	excluded := DrawExclusions(uc.config.ExcludedUsers, req.BotID, req.ActorID)
	pool, departed := FilterPool(uc.ledger.Candidates(req.GroupID), snap, excluded)
	if n := uc.ledger.Remove(req.GroupID, departed); n > 0 {
		fmt.Printf("[GameUC] Removed %d departed members from ledger of %s\n", n, req.GroupID)
	}
	if len(pool) == 0 {
		uc.persistLocked(ctx, repo.StateKeyLedger)
		return nil, domain.ErrEmptyPool
	}

	targetID := pool[uc.rng.IntN(len(pool))]
	rec := domain.PairingRecord{
		ActorID:    req.ActorID,
		TargetID:   targetID,
		TargetName: snap.Name(targetID),
		Timestamp:  now,
	}
	uc.records.Append(req.GroupID, rec)

	reciprocal := false
	if uc.config.AutoSetOtherHalf {
		reciprocal = uc.records.AddReciprocal(req.GroupID, rec, uc.actorName(snap, req))
	}
	uc.records.Trim(uc.config.MaxRecords)
	uc.persistLocked(ctx, repo.StateKeyRecords, repo.StateKeyLedger)

	count := len(uc.records.ActorRecords(req.GroupID, req.ActorID))
	fmt.Printf("[GameUC] Draw in %s: %s -> %s (pool=%d, members=%v)\n",
		req.GroupID, req.ActorID, targetID, len(pool), snap.Available)

	return &DrawResult{
		Record:     rec,
		Remaining:  max(uc.config.DailyLimit-count, 0),
		Reciprocal: reciprocal,
	}, nil
}

func (uc *GameUsecase) checkQuota(groupID, actorID string, now time.Time) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.records.EnsureToday(now)
	existing := uc.records.ActorRecords(groupID, actorID)
	if len(existing) < uc.config.DailyLimit {
		return nil
	}
	err := &domain.AlreadyDrawnError{Count: len(existing)}
	if uc.config.DailyLimit == 1 && len(existing) > 0 {
		rec := existing[0]
		err.Record = &rec
	}
	return err
}

// ForceRequest identifies a forced reassignment
type ForceRequest struct {
	GroupID   string
	ActorID   string
	ActorName string
	TargetID  string
	BotID     string
}

// ForceResult is a successful forced reassignment
type ForceResult struct {
	Record     domain.PairingRecord
	Replaced   int
	Reciprocal bool
}

// Force assigns the named target to the actor, replacing the actor's record for today.
// The cooldown is checked before the target is validated.
func (uc *GameUsecase) Force(ctx context.Context, req ForceRequest) (*ForceResult, error) {
	if !uc.Allowed(req.GroupID) {
		return nil, domain.ErrGroupNotAllowed
	}
	unlock := uc.groups.lock(req.GroupID)
	defer unlock()

	now := uc.now()
	if err := uc.checkForce(req, now); err != nil {
		return nil, err
	}

	snap := uc.fetchMembers(ctx, req.GroupID)

	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.records.EnsureToday(now)
	replaced := uc.records.RemoveActor(req.GroupID, req.ActorID)
	rec := domain.PairingRecord{
		ActorID:    req.ActorID,
		TargetID:   req.TargetID,
		TargetName: snap.Name(req.TargetID),
		Timestamp:  now,
		Forced:     true,
	}
	uc.records.Append(req.GroupID, rec)

	reciprocal := false
	if uc.config.AutoSetOtherHalf {
		reciprocal = uc.records.AddReciprocal(req.GroupID, rec, uc.actorName(snap, req.asDraw()))
	}
	uc.records.Trim(uc.config.MaxRecords)

	uc.popularity.Record(req.GroupID, req.TargetID, now)
	uc.decayLocked(req.GroupID, now)
	uc.cooldowns.Stamp(req.GroupID, req.ActorID, now)

	uc.persistLocked(ctx, repo.StateKeyRecords, repo.StateKeyCooldowns, repo.StateKeyPopularity)
	fmt.Printf("[GameUC] Force in %s: %s -> %s (replaced=%d)\n", req.GroupID, req.ActorID, req.TargetID, replaced)

	return &ForceResult{Record: rec, Replaced: replaced, Reciprocal: reciprocal}, nil
}

func (uc *GameUsecase) checkForce(req ForceRequest, now time.Time) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if last, ok := uc.cooldowns.LastForced(req.GroupID, req.ActorID, uc.config.Location); ok {
		if remaining := domain.CooldownRemaining(last, uc.config.ForceCooldownDays, now); remaining > 0 {
			return &domain.CooldownError{
				Remaining: remaining,
				ResetAt:   domain.CooldownResetAt(last, uc.config.ForceCooldownDays),
			}
		}
	}

	switch {
	case req.TargetID == "" || req.TargetID == domain.MentionAllID:
		return &domain.InvalidTargetError{Reason: domain.TargetNone}
	case req.TargetID == req.ActorID:
		return &domain.InvalidTargetError{Reason: domain.TargetSelf}
	}
	if _, ok := ForceExclusions(uc.config.ForceExcludedUsers, req.BotID)[req.TargetID]; ok {
		return &domain.InvalidTargetError{Reason: domain.TargetExcluded}
	}
	return nil
}

func (r ForceRequest) asDraw() DrawRequest {
	return DrawRequest{GroupID: r.GroupID, ActorID: r.ActorID, ActorName: r.ActorName, BotID: r.BotID}
}

// HistoryView is the actor's records for today
type HistoryView struct {
	Records   []domain.PairingRecord
	Limit     int
	Remaining int
}

// History returns the actor's records for today without mutating state
func (uc *GameUsecase) History(groupID, actorID string) *HistoryView {
	now := uc.now()
	uc.mu.Lock()
	defer uc.mu.Unlock()

	view := &HistoryView{Limit: uc.config.DailyLimit, Remaining: uc.config.DailyLimit}
	if !uc.records.IsToday(now) {
		return view
	}
	view.Records = uc.records.ActorRecords(groupID, actorID)
	view.Remaining = max(uc.config.DailyLimit-len(view.Records), 0)
	return view
}

// TodayRecords returns the group's records for today
func (uc *GameUsecase) TodayRecords(groupID string) []domain.PairingRecord {
	now := uc.now()
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if !uc.records.IsToday(now) {
		return nil
	}
	return uc.records.GroupRecords(groupID)
}

// Ranking decays the group's popularity counters, persists them and returns the top entries
// with display names resolved best effort.
func (uc *GameUsecase) Ranking(ctx context.Context, groupID string) []domain.RankEntry {
	now := uc.now()
	uc.mu.Lock()
	if uc.decayLocked(groupID, now) > 0 {
		uc.persistLocked(ctx, repo.StateKeyPopularity)
	}
	entries := uc.popularity.Ranking(groupID)
	uc.mu.Unlock()

	if len(entries) == 0 {
		return entries
	}
	snap := uc.fetchMembers(ctx, groupID)
	for i := range entries {
		entries[i].Name = snap.Name(entries[i].UserID)
	}
	return entries
}

// GraphView is today's relationship graph of a group
type GraphView struct {
	GroupID   string
	GroupName string
	Records   []domain.PairingRecord
	Names     map[string]string
}

// NodeCount counts distinct participants in the graph
func (v *GraphView) NodeCount() int {
	nodes := make(map[string]struct{})
	for _, r := range v.Records {
		nodes[r.ActorID] = struct{}{}
		nodes[r.TargetID] = struct{}{}
	}
	return len(nodes)
}

// Graph collects today's records with display names for every participant
func (uc *GameUsecase) Graph(ctx context.Context, groupID string) *GraphView {
	view := &GraphView{
		GroupID:   groupID,
		GroupName: groupID,
		Records:   uc.TodayRecords(groupID),
	}

	snap := uc.fetchMembers(ctx, groupID)
	view.Names = domain.MemberNames(snap.Members)
	for _, r := range view.Records {
		if _, ok := view.Names[r.TargetID]; !ok && r.TargetName != "" {
			view.Names[r.TargetID] = r.TargetName
		}
		if _, ok := view.Names[r.ActorID]; !ok {
			view.Names[r.ActorID] = domain.PlaceholderName(r.ActorID)
		}
	}

	if uc.messageRepo != nil {
		if info, err := uc.messageRepo.GetChatInfo(ctx, groupID); err == nil && info.Name != "" {
			view.GroupName = info.Name
		}
	}
	return view
}

// IsAdmin checks the configured admins, then the chat owner
func (uc *GameUsecase) IsAdmin(ctx context.Context, groupID, userID string) bool {
	for _, id := range uc.config.AdminUsers {
		if id == userID {
			return true
		}
	}
	if uc.messageRepo == nil || groupID == "" {
		return false
	}
	info, err := uc.messageRepo.GetChatInfo(ctx, groupID)
	if err != nil {
		fmt.Printf("[GameUC] Warning: failed to get chat info for admin check: %v\n", err)
		return false
	}
	return info.OwnerID != "" && info.OwnerID == userID
}

// ResetRecords deletes the group's records for today. Returns how many were deleted.
func (uc *GameUsecase) ResetRecords(ctx context.Context, groupID string) int {
	unlock := uc.groups.lock(groupID)
	defer unlock()

	now := uc.now()
	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.records.EnsureToday(now)
	n := uc.records.ResetGroup(groupID)
	uc.persistLocked(ctx, repo.StateKeyRecords)
	return n
}

// ResetCooldowns clears the group's cooldowns. Returns false if nobody was cooling down.
func (uc *GameUsecase) ResetCooldowns(ctx context.Context, groupID string) bool {
	unlock := uc.groups.lock(groupID)
	defer unlock()

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if !uc.cooldowns.ResetGroup(groupID) {
		return false
	}
	uc.persistLocked(ctx, repo.StateKeyCooldowns)
	return true
}

// MaintainLedger prunes every group by age, enforces the global capacity and flushes
// pending activity. Returns how many entries were removed.
func (uc *GameUsecase) MaintainLedger(ctx context.Context) int {
	now := uc.now()
	uc.mu.Lock()
	defer uc.mu.Unlock()

	removed := 0
	for gid := range uc.ledger {
		removed += uc.ledger.PruneGroup(gid, now, domain.ActivityWindow)
		if len(uc.ledger[gid]) == 0 {
			delete(uc.ledger, gid)
		}
	}
	removed += uc.ledger.CapacityEvict(uc.config.MaxActiveUsers)

	if removed > 0 || uc.ledgerDirty {
		uc.persistLocked(ctx, repo.StateKeyLedger)
	}
	return removed
}

// DecayPopularity runs the popularity decay over every group
func (uc *GameUsecase) DecayPopularity(ctx context.Context) int {
	now := uc.now()
	uc.mu.Lock()
	defer uc.mu.Unlock()

	groupIDs := make([]string, 0, len(uc.popularity))
	for gid := range uc.popularity {
		groupIDs = append(groupIDs, gid)
	}
	removed := 0
	for _, gid := range groupIDs {
		removed += uc.decayLocked(gid, now)
	}
	if removed > 0 {
		uc.persistLocked(ctx, repo.StateKeyPopularity)
	}
	return removed
}

// Stats is a snapshot of store sizes
type Stats struct {
	Date           string `json:"date"`
	LedgerGroups   int    `json:"ledger_groups"`
	LedgerEntries  int    `json:"ledger_entries"`
	Records        int    `json:"records"`
	Cooldowns      int    `json:"cooldowns"`
	PopularTargets int    `json:"popular_targets"`
}

// Stats returns store sizes
func (uc *GameUsecase) Stats() Stats {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return Stats{
		Date:           uc.records.Date,
		LedgerGroups:   len(uc.ledger),
		LedgerEntries:  uc.ledger.Total(),
		Records:        uc.records.Total(),
		Cooldowns:      uc.cooldowns.Total(),
		PopularTargets: uc.popularity.Total(),
	}
}

// Close writes every store
func (uc *GameUsecase) Close(ctx context.Context) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.persistLocked(ctx, repo.StateKeyRecords, repo.StateKeyLedger, repo.StateKeyCooldowns, repo.StateKeyPopularity)
	fmt.Println("[GameUC] State flushed")
}

func (uc *GameUsecase) now() time.Time {
	return uc.clock.Now().In(uc.config.Location)
}

func (uc *GameUsecase) decayLocked(groupID string, now time.Time) int {
	return uc.popularity.Decay(groupID, now, func(userID string) (time.Time, bool) {
		return uc.ledger.LastSeen(groupID, userID)
	})
}

func (uc *GameUsecase) actorName(snap MembershipSnapshot, req DrawRequest) string {
	fallback := req.ActorName
	if fallback == "" {
		fallback = domain.PlaceholderName(req.ActorID)
	}
	return domain.ResolveMemberName(snap.Members, req.ActorID, fallback)
}

// fetchMembers queries the member list under the configured timeout.
// Any failure, including an empty list, yields an unavailable snapshot.
func (uc *GameUsecase) fetchMembers(ctx context.Context, groupID string) MembershipSnapshot {
	if uc.messageRepo == nil {
		return MembershipSnapshot{}
	}
	qctx, cancel := context.WithTimeout(ctx, uc.config.MemberQueryTimeout)
	defer cancel()

	members, err := uc.messageRepo.GetChatMembers(qctx, groupID)
	if err != nil {
		fmt.Printf("[GameUC] Member query failed for %s, using ledger only: %v\n", groupID, err)
		return MembershipSnapshot{Err: err}
	}
	if len(members) == 0 {
		return MembershipSnapshot{}
	}
	return MembershipSnapshot{Available: true, Members: members}
}

// persistLocked saves the named stores. Failures are logged; in-memory state stays authoritative.
func (uc *GameUsecase) persistLocked(ctx context.Context, keys ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		var v any
		switch key {
		case repo.StateKeyRecords:
			v = uc.records
		case repo.StateKeyLedger:
			v = uc.ledger
		case repo.StateKeyCooldowns:
			v = uc.cooldowns
		case repo.StateKeyPopularity:
			v = uc.popularity
		default:
			continue
		}
		if err := uc.stateRepo.Save(ctx, key, v); err != nil {
			fmt.Printf("[GameUC] Warning: failed to save %s: %v\n", key, err)
			continue
		}
		if key == repo.StateKeyLedger {
			uc.ledgerDirty = false
		}
	}
}

// groupLocks hands out one mutex per group
type groupLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (g *groupLocks) lock(groupID string) func() {
	g.mu.Lock()
	if g.locks == nil {
		g.locks = make(map[string]*sync.Mutex)
	}
	l, ok := g.locks[groupID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[groupID] = l
	}
	g.mu.Unlock()

	l.Lock()
	return l.Unlock
}
