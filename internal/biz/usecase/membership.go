package usecase

import "github.com/devricklin/feishu-random-wife/internal/biz/domain"

// MembershipSnapshot is the outcome of a member list query.
// Available is false when the query failed, timed out or came back empty.
type MembershipSnapshot struct {
	Available bool
	Members   []domain.Member
	Err       error
}

// Name resolves a display name, falling back to the placeholder
func (s MembershipSnapshot) Name(userID string) string {
	return domain.ResolveMemberName(s.Members, userID, domain.PlaceholderName(userID))
}

// DrawExclusions is the configured list plus the bot, the actor and the sentinel
func DrawExclusions(configured []string, botID, actorID string) map[string]struct{} {
	set := domain.IDSet(configured, []string{botID, actorID})
	set[domain.SentinelID] = struct{}{}
	return set
}

// ForceExclusions is the configured forced-reassignment list plus the bot and the sentinel
func ForceExclusions(configured []string, botID string) map[string]struct{} {
	set := domain.IDSet(configured, []string{botID})
	set[domain.SentinelID] = struct{}{}
	return set
}

// FilterPool intersects ledger candidates with the snapshot when it is available and drops
// excluded ids. departed lists candidates missing from an available snapshot.
// An unavailable snapshot leaves the ledger as the only source.
func FilterPool(candidates []string, snap MembershipSnapshot, excluded map[string]struct{}) (pool, departed []string) {
	var present map[string]struct{}
	if snap.Available {
		present = make(map[string]struct{}, len(snap.Members))
		for _, m := range snap.Members {
			present[m.UserID] = struct{}{}
		}
	}
	for _, id := range candidates {
		if present != nil {
			if _, ok := present[id]; !ok {
				departed = append(departed, id)
				continue
			}
		}
		if _, ok := excluded[id]; ok {
			continue
		}
		pool = append(pool, id)
	}
	return pool, departed
}
