package adjustment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stockgate/stockgate/internal/ledger"
	"github.com/stockgate/stockgate/internal/shared"
)

// Engine applies exactly one signed quantity delta per request to the ledger
// via compare-and-swap. It never retries a stale-version conflict; the caller
// decides whether to reload and try again.
type Engine struct {
	now func() time.Time
}

// NewEngine constructs Engine. now may be nil, defaulting to time.Now.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// Apply mutates the target ledger record for an approved request. Completed
// requests are a no-op: a retried caller must not mutate the ledger twice.
// Stock may have drifted since the preview at creation, so the resulting
// on-hand quantity is re-validated here.
func (e *Engine) Apply(ctx context.Context, store ledger.Store, req Request) (ledger.Record, error) {
	if req.Status == StatusCompleted {
		return ledger.Record{}, nil
	}
	if req.Status != StatusApproved {
		return ledger.Record{}, fmt.Errorf("%w: request %s is %s, not approved", shared.ErrConflict, req.AdjustmentNumber, req.Status)
	}

	rec, err := store.Get(ctx, ledger.Key{SKUID: req.SKUID, LocationID: req.LocationID})
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ledger.Record{}, fmt.Errorf("%w: ledger record %s/%s", shared.ErrNotFound, req.SKUID, req.LocationID)
		}
		return ledger.Record{}, err
	}

	delta := req.Quantity
	if req.Type == TypeShortage {
		delta = -req.Quantity
	}
	newOnHand := rec.OnHandQty + delta
	if newOnHand < 0 {
		return ledger.Record{}, fmt.Errorf("%w: on-hand %.2f cannot absorb shortage %.2f", shared.ErrNegativeStock, rec.OnHandQty, req.Quantity)
	}

	next := rec
	next.OnHandQty = newOnHand
	next.AvailableQty = newOnHand - rec.ReservedQty
	next.LastUpdated = e.now().UTC()

	updated, err := store.CompareAndSwap(ctx, next, rec.Version)
	if err != nil {
		if errors.Is(err, ledger.ErrStaleVersion) {
			return ledger.Record{}, fmt.Errorf("%w: ledger %s/%s changed concurrently", shared.ErrConflict, req.SKUID, req.LocationID)
		}
		return ledger.Record{}, err
	}
	return updated, nil
}
