package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/devricklin/feishu-random-wife/internal/biz/domain"
	"github.com/devricklin/feishu-random-wife/internal/biz/repo"
)

// Mock implementations

type mockStateRepo struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	saves   map[string]int
	saveErr error
}

func newMockStateRepo() *mockStateRepo {
	return &mockStateRepo{blobs: make(map[string][]byte), saves: make(map[string]int)}
}

func (m *mockStateRepo) Load(ctx context.Context, key string, v any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, v)
}

func (m *mockStateRepo) Save(ctx context.Context, key string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves[key]++
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.blobs[key] = data
	return nil
}

func (m *mockStateRepo) Close() error {
	return nil
}

type mockMessageRepo struct {
	members   []domain.Member
	memberErr error
	owner     string
	chatName  string
}

func (m *mockMessageRepo) GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error) {
	return m.members, m.memberErr
}

func (m *mockMessageRepo) GetChatInfo(ctx context.Context, chatID string) (*repo.ChatInfo, error) {
	return &repo.ChatInfo{ChatID: chatID, Name: m.chatName, OwnerID: m.owner}, nil
}

func (m *mockMessageRepo) SendText(ctx context.Context, chatID, text string) (string, error) {
	return "msg", nil
}

func (m *mockMessageRepo) SendTextWithMentions(ctx context.Context, chatID, text string, mentions []domain.Member) (string, error) {
	return "msg", nil
}

func (m *mockMessageRepo) SendImage(ctx context.Context, chatID string, png []byte) (string, error) {
	return "img", nil
}

func (m *mockMessageRepo) DeleteMessage(ctx context.Context, msgID string) error {
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// fixedRandom always picks the same index, wrapped to the pool size
type fixedRandom struct {
	index int
}

func (r fixedRandom) IntN(n int) int {
	return r.index % n
}

var testLoc = time.FixedZone("CST", 8*3600)

func newTestGame(cfg GameConfig, msgRepo repo.MessageRepo) (*GameUsecase, *mockStateRepo, *fakeClock) {
	state := newMockStateRepo()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, testLoc)}
	cfg.Location = testLoc
	return NewGameUsecase(state, msgRepo, cfg, clock, fixedRandom{}), state, clock
}

func members(ids ...string) []domain.Member {
	out := make([]domain.Member, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Member{UserID: id, Name: "name-" + id})
	}
	return out
}

// Tests

func TestDraw_OnlyEligibleTargetIsChosen(t *testing.T) {
	msgRepo := &mockMessageRepo{members: members("A", "B", "bot")}
	uc, state, _ := newTestGame(DefaultGameConfig(), msgRepo)
	for _, id := range []string{"A", "B", "bot"} {
		uc.Observe("g1", id, "")
	}

	for i := 0; i < 3; i++ {
		uc.rng = fixedRandom{index: i}
		uc.records.ResetGroup("g1")

		result, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A", BotID: "bot"})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if result.Record.TargetID != "B" {
			t.Fatalf("Expected target B, got %s", result.Record.TargetID)
		}
		if result.Record.TargetName != "name-B" {
			t.Errorf("Expected resolved name, got %s", result.Record.TargetName)
		}
	}
	if state.saves[repo.StateKeyRecords] == 0 {
		t.Error("Expected records to be persisted")
	}
}

func TestDraw_SecondDrawReturnsSameTarget(t *testing.T) {
	uc, _, _ := newTestGame(DefaultGameConfig(), nil)
	for _, id := range []string{"A", "B", "C", "D"} {
		uc.Observe("g1", id, "")
	}

	first, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	uc.rng = fixedRandom{index: 2}

	_, err = uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"})

	var drawn *domain.AlreadyDrawnError
	if !errors.As(err, &drawn) {
		t.Fatalf("Expected AlreadyDrawnError, got %v", err)
	}
	if drawn.Record == nil || drawn.Record.TargetID != first.Record.TargetID {
		t.Errorf("Expected existing target %s, got %+v", first.Record.TargetID, drawn.Record)
	}
}

func TestDraw_QuotaAboveOne(t *testing.T) {
	cfg := DefaultGameConfig()
	cfg.DailyLimit = 2
	uc, _, _ := newTestGame(cfg, nil)
	for _, id := range []string{"A", "B", "C"} {
		uc.Observe("g1", id, "")
	}

	first, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"})
	if err != nil || first.Remaining != 1 {
		t.Fatalf("Expected 1 remaining draw, got %+v, %v", first, err)
	}
	second, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"})
	if err != nil || second.Remaining != 0 {
		t.Fatalf("Expected 0 remaining draws, got %+v, %v", second, err)
	}

	_, err = uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"})
	var drawn *domain.AlreadyDrawnError
	if !errors.As(err, &drawn) {
		t.Fatalf("Expected AlreadyDrawnError, got %v", err)
	}
	if drawn.Count != 2 || drawn.Record != nil {
		t.Errorf("Expected bare exhausted signal with count 2, got %+v", drawn)
	}
}

func TestDraw_QuotaResetsAtMidnight(t *testing.T) {
	uc, _, clock := newTestGame(DefaultGameConfig(), nil)
	uc.Observe("g1", "A", "")
	uc.Observe("g1", "B", "")

	if _, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	clock.Set(time.Date(2024, 5, 2, 0, 0, 1, 0, testLoc))

	if _, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"}); err != nil {
		t.Fatalf("Expected a new draw after midnight, got %v", err)
	}
}

func TestDraw_EmptyPool(t *testing.T) {
	uc, _, _ := newTestGame(DefaultGameConfig(), nil)
	uc.Observe("g1", "A", "")

	_, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"})

	if !errors.Is(err, domain.ErrEmptyPool) {
		t.Errorf("Expected ErrEmptyPool, got %v", err)
	}
}

func TestDraw_ConfiguredExclusions(t *testing.T) {
	cfg := DefaultGameConfig()
	cfg.ExcludedUsers = []string{"B"}
	uc, _, _ := newTestGame(cfg, nil)
	uc.Observe("g1", "A", "")
	uc.Observe("g1", "B", "")

	_, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"})

	if !errors.Is(err, domain.ErrEmptyPool) {
		t.Errorf("Expected ErrEmptyPool, got %v", err)
	}
}

func TestDraw_PrunesStaleParticipants(t *testing.T) {
	uc, _, clock := newTestGame(DefaultGameConfig(), nil)
	clock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, testLoc))
	uc.Observe("g1", "old", "")
	clock.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, testLoc))
	uc.Observe("g1", "A", "")

	_, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"})

	if !errors.Is(err, domain.ErrEmptyPool) {
		t.Errorf("Expected stale participant to be pruned, got %v", err)
	}
}

func TestDraw_DepartedMembersAreRemoved(t *testing.T) {
	msgRepo := &mockMessageRepo{members: members("A", "B")}
	uc, _, _ := newTestGame(DefaultGameConfig(), msgRepo)
	for _, id := range []string{"A", "B", "C"} {
		uc.Observe("g1", id, "")
	}

	for i := 0; i < 2; i++ {
		uc.rng = fixedRandom{index: i}
		uc.records.ResetGroup("g1")
		result, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if result.Record.TargetID != "B" {
			t.Errorf("Expected B, got %s", result.Record.TargetID)
		}
	}
	if _, ok := uc.ledger["g1"]["C"]; ok {
		t.Error("Expected departed member C to be removed from the ledger")
	}
}

func TestDraw_MemberQueryFailureFallsBackToLedger(t *testing.T) {
	msgRepo := &mockMessageRepo{memberErr: errors.New("timeout")}
	uc, _, _ := newTestGame(DefaultGameConfig(), msgRepo)
	uc.Observe("g1", "A", "")
	uc.Observe("g1", "C", "")

	result, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"})

	if err != nil {
		t.Fatalf("Expected fail-open draw, got %v", err)
	}
	if result.Record.TargetID != "C" {
		t.Errorf("Expected C, got %s", result.Record.TargetID)
	}
	if result.Record.TargetName != domain.PlaceholderName("C") {
		t.Errorf("Expected placeholder name, got %s", result.Record.TargetName)
	}
	if _, ok := uc.ledger["g1"]["C"]; !ok {
		t.Error("Expected ledger to be untouched when members are unavailable")
	}
}

func TestDraw_NeverReturnsActorOrBot(t *testing.T) {
	state := newMockStateRepo()
	cfg := DefaultGameConfig()
	cfg.Location = testLoc
	uc := NewGameUsecase(state, nil, cfg, &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, testLoc)}, NewRandom())
	for _, id := range []string{"A", "B", "C", "bot", domain.SentinelID} {
		uc.ledger.Observe("g1", id, "", uc.now())
	}

	for i := 0; i < 200; i++ {
		uc.records.ResetGroup("g1")
		result, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A", BotID: "bot"})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		switch result.Record.TargetID {
		case "A", "bot", domain.SentinelID:
			t.Fatalf("Excluded id %s was drawn", result.Record.TargetID)
		}
	}
}

func TestDraw_Reciprocal(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		cfg := DefaultGameConfig()
		cfg.AutoSetOtherHalf = enabled
		uc, _, _ := newTestGame(cfg, &mockMessageRepo{members: members("A", "B")})
		uc.Observe("g1", "A", "")
		uc.Observe("g1", "B", "")

		result, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if result.Reciprocal != enabled {
			t.Errorf("enabled=%v: expected Reciprocal=%v", enabled, enabled)
		}
		back := uc.records.ActorRecords("g1", "B")
		if enabled && (len(back) != 1 || back[0].TargetID != "A" || back[0].TargetName != "name-A") {
			t.Errorf("Expected reciprocal record B -> A, got %+v", back)
		}
		if !enabled && len(back) != 0 {
			t.Errorf("Expected no reciprocal record, got %+v", back)
		}
	}
}

func TestDraw_ReciprocalNeverOverwrites(t *testing.T) {
	cfg := DefaultGameConfig()
	cfg.AutoSetOtherHalf = true
	uc, _, _ := newTestGame(cfg, nil)
	for _, id := range []string{"A", "B", "C"} {
		uc.Observe("g1", id, "")
	}
	// B already drew C
	uc.records.Append("g1", domain.PairingRecord{ActorID: "B", TargetID: "C", Timestamp: uc.now()})

	result, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Record.TargetID != "B" {
		t.Fatalf("Expected B, got %s", result.Record.TargetID)
	}
	if result.Reciprocal {
		t.Error("Expected reciprocal to be skipped")
	}
	if got := uc.records.ActorRecords("g1", "B"); len(got) != 1 || got[0].TargetID != "C" {
		t.Errorf("Existing record was changed: %+v", got)
	}
}

func TestDraw_ConcurrentSameActorWinsOnce(t *testing.T) {
	uc, _, _ := newTestGame(DefaultGameConfig(), nil)
	for _, id := range []string{"A", "B", "C", "D"} {
		uc.Observe("g1", id, "")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Expected exactly one winning draw, got %d", wins)
	}
	if n := len(uc.records.ActorRecords("g1", "A")); n != 1 {
		t.Errorf("Expected 1 record, got %d", n)
	}
}

func TestDraw_PersistenceFailureIsSwallowed(t *testing.T) {
	uc, state, _ := newTestGame(DefaultGameConfig(), nil)
	state.saveErr = errors.New("disk full")
	uc.Observe("g1", "A", "")
	uc.Observe("g1", "B", "")

	if _, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"}); err != nil {
		t.Fatalf("Expected draw to succeed despite save failure, got %v", err)
	}
	if !uc.records.HasRecord("g1", "A") {
		t.Error("Expected in-memory record to remain")
	}
}

func TestDraw_GroupNotAllowed(t *testing.T) {
	cfg := DefaultGameConfig()
	cfg.Policy = domain.GroupPolicy{Blacklist: []string{"g1"}}
	uc, _, _ := newTestGame(cfg, nil)

	_, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"})

	if !errors.Is(err, domain.ErrGroupNotAllowed) {
		t.Errorf("Expected ErrGroupNotAllowed, got %v", err)
	}
}

func TestForce_InvalidTargets(t *testing.T) {
	cfg := DefaultGameConfig()
	cfg.ForceExcludedUsers = []string{"vip"}
	uc, _, _ := newTestGame(cfg, nil)

	tests := []struct {
		target string
		reason domain.InvalidTargetReason
	}{
		{"", domain.TargetNone},
		{domain.MentionAllID, domain.TargetNone},
		{"A", domain.TargetSelf},
		{"vip", domain.TargetExcluded},
		{"bot", domain.TargetExcluded},
		{domain.SentinelID, domain.TargetExcluded},
	}
	for _, tt := range tests {
		_, err := uc.Force(context.Background(), ForceRequest{GroupID: "g1", ActorID: "A", TargetID: tt.target, BotID: "bot"})
		var invalid *domain.InvalidTargetError
		if !errors.As(err, &invalid) || invalid.Reason != tt.reason {
			t.Errorf("target %q: expected %s, got %v", tt.target, tt.reason, err)
		}
	}
	if uc.cooldowns.Total() != 0 || uc.records.Total() != 0 {
		t.Error("Expected no state mutation on invalid target")
	}
}

func TestForce_ReplacesTodayRecord(t *testing.T) {
	uc, state, _ := newTestGame(DefaultGameConfig(), &mockMessageRepo{members: members("A", "B", "C")})
	uc.Observe("g1", "A", "")
	uc.Observe("g1", "B", "")
	if _, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	uc.Observe("g1", "C", "")

	result, err := uc.Force(context.Background(), ForceRequest{GroupID: "g1", ActorID: "A", TargetID: "C"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.Replaced != 1 {
		t.Errorf("Expected 1 replaced record, got %d", result.Replaced)
	}
	got := uc.records.ActorRecords("g1", "A")
	if len(got) != 1 || got[0].TargetID != "C" || !got[0].Forced || got[0].TargetName != "name-C" {
		t.Errorf("Expected single forced record to C, got %+v", got)
	}
	if uc.popularity.Count("g1", "C") != 1 {
		t.Errorf("Expected one popularity event for C, got %d", uc.popularity.Count("g1", "C"))
	}
	for _, key := range []string{repo.StateKeyRecords, repo.StateKeyCooldowns, repo.StateKeyPopularity} {
		if state.saves[key] == 0 {
			t.Errorf("Expected %s to be persisted", key)
		}
	}
}

func TestForce_CalendarCooldownBoundary(t *testing.T) {
	uc, _, clock := newTestGame(DefaultGameConfig(), nil)
	uc.Observe("g1", "B", "")
	uc.Observe("g1", "C", "")
	clock.Set(time.Date(2024, 5, 1, 22, 30, 0, 0, testLoc))

	if _, err := uc.Force(context.Background(), ForceRequest{GroupID: "g1", ActorID: "A", TargetID: "B"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	reset := time.Date(2024, 5, 4, 0, 0, 0, 0, testLoc)
	clock.Set(reset.Add(-time.Second))
	_, err := uc.Force(context.Background(), ForceRequest{GroupID: "g1", ActorID: "A", TargetID: "C"})
	var cooling *domain.CooldownError
	if !errors.As(err, &cooling) {
		t.Fatalf("Expected CooldownError one second before reset, got %v", err)
	}
	if !cooling.ResetAt.Equal(reset) || cooling.Remaining != time.Second {
		t.Errorf("Unexpected cooldown %+v", cooling)
	}

	clock.Set(reset.Add(time.Second))
	if _, err := uc.Force(context.Background(), ForceRequest{GroupID: "g1", ActorID: "A", TargetID: "C"}); err != nil {
		t.Errorf("Expected force to succeed one second after reset, got %v", err)
	}
}

func TestForce_ZeroDayCooldown(t *testing.T) {
	cfg := DefaultGameConfig()
	cfg.ForceCooldownDays = 0
	uc, _, clock := newTestGame(cfg, nil)
	uc.Observe("g1", "B", "")
	uc.Observe("g1", "C", "")

	if _, err := uc.Force(context.Background(), ForceRequest{GroupID: "g1", ActorID: "A", TargetID: "B"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	clock.Set(time.Date(2024, 5, 1, 12, 5, 0, 0, testLoc))
	res, err := uc.Force(context.Background(), ForceRequest{GroupID: "g1", ActorID: "A", TargetID: "C"})
	if err != nil {
		t.Fatalf("Expected a second force the same day to succeed, got %v", err)
	}
	if res.Record.TargetID != "C" || res.Replaced != 1 {
		t.Errorf("Unexpected result %+v", res)
	}
}

func TestForce_UnobservedTargetIsNotRanked(t *testing.T) {
	uc, _, _ := newTestGame(DefaultGameConfig(), nil)

	if _, err := uc.Force(context.Background(), ForceRequest{GroupID: "g1", ActorID: "A", TargetID: "B"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if entries := uc.Ranking(context.Background(), "g1"); len(entries) != 0 {
		t.Errorf("Expected a target absent from the ledger to decay away, got %+v", entries)
	}
	if stats := uc.Stats(); stats.PopularTargets != 0 {
		t.Errorf("Expected no popular targets, got %d", stats.PopularTargets)
	}
}

func TestForce_CooldownPrecedesValidation(t *testing.T) {
	uc, _, _ := newTestGame(DefaultGameConfig(), nil)
	if _, err := uc.Force(context.Background(), ForceRequest{GroupID: "g1", ActorID: "A", TargetID: "B"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	_, err := uc.Force(context.Background(), ForceRequest{GroupID: "g1", ActorID: "A", TargetID: "A"})

	var cooling *domain.CooldownError
	if !errors.As(err, &cooling) {
		t.Errorf("Expected CooldownError before target validation, got %v", err)
	}
}

func TestForce_Reciprocal(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		cfg := DefaultGameConfig()
		cfg.AutoSetOtherHalf = enabled
		uc, _, _ := newTestGame(cfg, nil)
		uc.Observe("g1", "B", "")

		result, err := uc.Force(context.Background(), ForceRequest{GroupID: "g1", ActorID: "A", ActorName: "Alice", TargetID: "B"})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if result.Reciprocal != enabled {
			t.Errorf("enabled=%v: expected Reciprocal=%v", enabled, enabled)
		}
		back := uc.records.ActorRecords("g1", "B")
		if enabled && (len(back) != 1 || back[0].TargetID != "A" || back[0].TargetName != "Alice" || back[0].Forced) {
			t.Errorf("Expected unforced reciprocal record B -> A, got %+v", back)
		}
		if !enabled && len(back) != 0 {
			t.Errorf("Expected no reciprocal record, got %+v", back)
		}
	}
}

func TestHistory(t *testing.T) {
	cfg := DefaultGameConfig()
	cfg.DailyLimit = 3
	uc, _, clock := newTestGame(cfg, nil)
	uc.Observe("g1", "A", "")
	uc.Observe("g1", "B", "")
	if _, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	view := uc.History("g1", "A")
	if len(view.Records) != 1 || view.Remaining != 2 || view.Limit != 3 {
		t.Errorf("Unexpected history %+v", view)
	}

	clock.Set(clock.Now().Add(24 * time.Hour))
	if view := uc.History("g1", "A"); len(view.Records) != 0 {
		t.Error("Expected stale partition to read as empty")
	}
}

func TestRanking_DecaysAndResolvesNames(t *testing.T) {
	msgRepo := &mockMessageRepo{members: members("B", "C")}
	uc, _, _ := newTestGame(DefaultGameConfig(), msgRepo)
	now := uc.now()
	uc.Observe("g1", "B", "")
	uc.Observe("g1", "C", "")
	uc.popularity.Record("g1", "B", now)
	uc.popularity.Record("g1", "B", now)
	uc.popularity.Record("g1", "C", now)
	uc.popularity.Record("g1", "gone", now)

	entries := uc.Ranking(context.Background(), "g1")

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries after decay, got %+v", entries)
	}
	if entries[0].UserID != "B" || entries[0].Rank != 1 || entries[0].Name != "name-B" {
		t.Errorf("Unexpected leader %+v", entries[0])
	}
	if entries[1].Rank != 2 {
		t.Errorf("Expected rank 2, got %d", entries[1].Rank)
	}
}

func TestGraph_CollectsNames(t *testing.T) {
	msgRepo := &mockMessageRepo{members: members("A"), chatName: "测试群"}
	uc, _, _ := newTestGame(DefaultGameConfig(), msgRepo)
	uc.records.Append("g1", domain.PairingRecord{ActorID: "A", TargetID: "B", TargetName: "Bob", Timestamp: uc.now()})
	uc.records.Append("g1", domain.PairingRecord{ActorID: "X", TargetID: "A", TargetName: "name-A", Timestamp: uc.now()})

	view := uc.Graph(context.Background(), "g1")

	if view.GroupName != "测试群" {
		t.Errorf("Expected group name, got %s", view.GroupName)
	}
	if view.NodeCount() != 3 {
		t.Errorf("Expected 3 nodes, got %d", view.NodeCount())
	}
	if view.Names["B"] != "Bob" || view.Names["X"] != domain.PlaceholderName("X") || view.Names["A"] != "name-A" {
		t.Errorf("Unexpected names %v", view.Names)
	}
}

func TestResets(t *testing.T) {
	uc, _, _ := newTestGame(DefaultGameConfig(), nil)
	uc.records.Append("g1", domain.PairingRecord{ActorID: "A", TargetID: "B"})
	uc.records.Append("g2", domain.PairingRecord{ActorID: "C", TargetID: "D"})
	uc.cooldowns.Stamp("g1", "A", uc.now())

	if n := uc.ResetRecords(context.Background(), "g1"); n != 1 {
		t.Errorf("Expected 1 record cleared, got %d", n)
	}
	if !uc.records.HasRecord("g2", "C") {
		t.Error("Expected other groups to keep their records")
	}
	if !uc.ResetCooldowns(context.Background(), "g1") {
		t.Error("Expected cooldowns to be cleared")
	}
	if uc.ResetCooldowns(context.Background(), "g1") {
		t.Error("Expected nothing left to clear")
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := DefaultGameConfig()
	cfg.AdminUsers = []string{"root"}
	uc, _, _ := newTestGame(cfg, &mockMessageRepo{owner: "owner"})

	if !uc.IsAdmin(context.Background(), "g1", "root") || !uc.IsAdmin(context.Background(), "g1", "owner") {
		t.Error("Expected configured admin and chat owner to be admins")
	}
	if uc.IsAdmin(context.Background(), "g1", "someone") {
		t.Error("Expected ordinary member not to be admin")
	}
}

func TestMaintainLedger_EvictsAndFlushes(t *testing.T) {
	cfg := DefaultGameConfig()
	cfg.MaxActiveUsers = 2
	uc, state, clock := newTestGame(cfg, nil)
	base := clock.Now()
	for i, id := range []string{"A", "B", "C"} {
		clock.Set(base.Add(time.Duration(i) * time.Minute))
		uc.Observe("g1", id, "")
	}

	removed := uc.MaintainLedger(context.Background())

	if removed != 1 {
		t.Errorf("Expected 1 eviction, got %d", removed)
	}
	if _, ok := uc.ledger["g1"]["A"]; ok {
		t.Error("Expected oldest entry to be evicted")
	}
	if state.saves[repo.StateKeyLedger] != 1 {
		t.Errorf("Expected one ledger save, got %d", state.saves[repo.StateKeyLedger])
	}
	if uc.MaintainLedger(context.Background()); state.saves[repo.StateKeyLedger] != 1 {
		t.Error("Expected clean ledger not to be saved again")
	}
}

func TestLoad_RestoresState(t *testing.T) {
	uc, state, _ := newTestGame(DefaultGameConfig(), nil)
	uc.Observe("g1", "A", "")
	uc.Observe("g1", "B", "")
	if _, err := uc.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	uc.Close(context.Background())

	cfg := DefaultGameConfig()
	cfg.Location = testLoc
	restored := NewGameUsecase(state, nil, cfg, uc.clock, fixedRandom{})
	if err := restored.Load(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	stats := restored.Stats()
	if stats.Records != 1 || stats.LedgerEntries != 2 {
		t.Errorf("Unexpected restored stats %+v", stats)
	}
	_, err := restored.Draw(context.Background(), DrawRequest{GroupID: "g1", ActorID: "A"})
	var drawn *domain.AlreadyDrawnError
	if !errors.As(err, &drawn) || drawn.Record.TargetID != "B" {
		t.Errorf("Expected restored quota to block a second draw, got %v", err)
	}
}
