package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgx both pgxpool.Pool and pgx.Tx satisfy. Taking the
// interface lets the adjustment module run ledger writes inside its own
// transaction so request-persist and ledger-mutate commit together.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists ledger records in PostgreSQL.
type Repository struct {
	db DB
}

// NewRepository constructs Repository over a pool or transaction.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `sku_id, location_id, on_hand_qty, available_qty, reserved_qty, in_transit_qty, version, last_updated`

// Get returns the current snapshot for the key.
func (r *Repository) Get(ctx context.Context, key Key) (Record, error) {
	row := r.db.QueryRow(ctx, `SELECT `+recordColumns+`
FROM ledger_records WHERE sku_id=$1 AND location_id=$2`, key.SKUID, key.LocationID)
	return scanRecord(row)
}

// CompareAndSwap writes the new snapshot guarded by a version predicate in the
// write clause. Zero rows affected means either the record vanished or the
// version moved on; the two are distinguished with a follow-up lookup.
func (r *Repository) CompareAndSwap(ctx context.Context, rec Record, expectedVersion int64) (Record, error) {
	tag, err := r.db.Exec(ctx, `UPDATE ledger_records
SET on_hand_qty=$1, available_qty=$2, reserved_qty=$3, in_transit_qty=$4, version=version+1, last_updated=$5
WHERE sku_id=$6 AND location_id=$7 AND version=$8`,
		rec.OnHandQty, rec.AvailableQty, rec.ReservedQty, rec.InTransitQty, rec.LastUpdated,
		rec.SKUID, rec.LocationID, expectedVersion)
	if err != nil {
		return Record{}, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, Key{SKUID: rec.SKUID, LocationID: rec.LocationID}); err != nil {
			return Record{}, err
		}
		return Record{}, ErrStaleVersion
	}
	rec.Version = expectedVersion + 1
	return rec, nil
}

// Upsert seeds or replaces a snapshot. Intended for provisioning and sibling
// inbound paths, not for the adjustment engine, which must go through
// CompareAndSwap.
func (r *Repository) Upsert(ctx context.Context, rec Record) error {
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `INSERT INTO ledger_records (`+recordColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (sku_id, location_id) DO UPDATE
SET on_hand_qty=EXCLUDED.on_hand_qty, available_qty=EXCLUDED.available_qty,
    reserved_qty=EXCLUDED.reserved_qty, in_transit_qty=EXCLUDED.in_transit_qty,
    version=ledger_records.version+1, last_updated=EXCLUDED.last_updated`,
		rec.SKUID, rec.LocationID, rec.OnHandQty, rec.AvailableQty, rec.ReservedQty,
		rec.InTransitQty, rec.Version, rec.LastUpdated)
	return err
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.SKUID, &rec.LocationID, &rec.OnHandQty, &rec.AvailableQty,
		&rec.ReservedQty, &rec.InTransitQty, &rec.Version, &rec.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}
