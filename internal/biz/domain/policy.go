package domain

// GroupPolicy is the whitelist/blacklist gate. Blacklist wins; an empty whitelist admits all.
type GroupPolicy struct {
	Whitelist []string
	Blacklist []string
}

// Allowed checks whether the game runs in a group
func (p GroupPolicy) Allowed(groupID string) bool {
	for _, id := range p.Blacklist {
		if id == groupID {
			return false
		}
	}
	if len(p.Whitelist) == 0 {
		return true
	}
	for _, id := range p.Whitelist {
		if id == groupID {
			return true
		}
	}
	return false
}

// IDSet builds a set from ids, skipping empty strings
func IDSet(ids ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, list := range ids {
		for _, id := range list {
			if id != "" {
				set[id] = struct{}{}
			}
		}
	}
	return set
}
