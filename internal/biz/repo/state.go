package repo

import "context"

// Keys of the persisted state blobs
const (
	StateKeyRecords    = "wife_records"
	StateKeyLedger     = "active_users"
	StateKeyCooldowns  = "forced_marriage"
	StateKeyPopularity = "rbq_stats"
)

// StateRepo is a key -> JSON blob store
type StateRepo interface {
	// Load decodes the blob stored under key into v. found is false when nothing is stored.
	Load(ctx context.Context, key string, v any) (found bool, err error)

	// Save encodes v and replaces the blob stored under key
	Save(ctx context.Context, key string, v any) error

	Close() error
}
