// Package store defines the ledger storage contract for audit events.
package store

import (
	"context"

	"ecoaudit/internal/audit"
)

// Store is the append-only ledger. Implementations are interface-driven to
// keep the service testable and to allow swapping in-memory and postgres
// persistence without rewiring business code.
//
// Append must be atomic per record: it assigns the event's ID (unique,
// monotonically increasing) and its timestamp when unset, and the record is
// visible to Query as soon as Append returns. Nothing in this interface can
// modify or remove a persisted record.
type Store interface {
	Append(ctx context.Context, event *audit.Event) error
	Query(ctx context.Context, filter audit.Filter, page audit.Page) ([]audit.Event, error)
}
