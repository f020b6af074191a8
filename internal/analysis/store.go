package analysis

import (
	"context"
	"time"
)

// Store persists analysis reports, one per (chain, address).
type Store interface {
	// Upsert inserts or replaces the report for its token.
	Upsert(ctx context.Context, report *Report) error
	// Get returns the report for a token, or ErrNotFound.
	Get(ctx context.Context, chain, address string) (*Report, error)
	// ListRecent returns up to limit reports, most recently updated first.
	ListRecent(ctx context.Context, limit int) ([]*Report, error)
	// ListRecentBefore returns up to limit reports strictly older than the
	// (updatedAt, key) position, most recently updated first. Key is the
	// report's chain:address pair; a zero updatedAt starts from the newest.
	ListRecentBefore(ctx context.Context, updatedAt time.Time, key string, limit int) ([]*Report, error)
}

// PageKey is the tiebreak key used for keyset pagination over reports.
func PageKey(r *Report) string {
	return r.Chain + ":" + r.Address
}
