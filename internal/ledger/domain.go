package ledger

import (
	"context"
	"errors"
	"time"
)

// Record is the authoritative stock snapshot for one SKU at one location.
// AvailableQty must equal OnHandQty - ReservedQty after every mutation this
// service performs. Version increments on every successful write.
type Record struct {
	SKUID        string
	LocationID   string
	OnHandQty    float64
	AvailableQty float64
	ReservedQty  float64
	InTransitQty float64
	Version      int64
	LastUpdated  time.Time
}

// Key identifies a ledger record.
type Key struct {
	SKUID      string
	LocationID string
}

// ErrNotFound indicates no ledger record exists for the key.
var ErrNotFound = errors.New("ledger: record not found")

// ErrStaleVersion indicates the compare-and-swap precondition failed because
// another mutator committed first. Callers decide whether to reload and retry.
var ErrStaleVersion = errors.New("ledger: stale version")

// Store is the contract every ledger mutator must honor: read the record with
// its version, compute, then CompareAndSwap conditioned on that version. The
// ledger is a shared resource; sibling mutation paths (purchase, sales,
// transfer) use the same contract.
type Store interface {
	Get(ctx context.Context, key Key) (Record, error)
	// CompareAndSwap writes rec only if the stored version still equals
	// expectedVersion. It returns ErrStaleVersion when the precondition
	// fails and ErrNotFound when the record does not exist.
	CompareAndSwap(ctx context.Context, rec Record, expectedVersion int64) (Record, error)
}
