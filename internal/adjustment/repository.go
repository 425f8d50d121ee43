package adjustment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockgate/stockgate/internal/ledger"
	"github.com/stockgate/stockgate/internal/platform/db"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRequest(ctx context.Context, id uuid.UUID) (Request, error)
	ListPending(ctx context.Context) ([]Request, error)
	ListByOperator(ctx context.Context, operatorID string) ([]Request, error)
}

// TxRepository exposes the operations available inside one unit of work.
// LedgerStore returns a ledger view bound to the same transaction so a
// request write and its ledger mutation commit or roll back together.
type TxRepository interface {
	InsertRequest(ctx context.Context, req Request) error
	GetRequest(ctx context.Context, id uuid.UUID) (Request, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) error
	InsertDecision(ctx context.Context, d Decision) error
	LedgerStore() ledger.Store
}

// UpdateStatusParams drives the compare-and-swap on the request row. The
// write is conditioned on both the expected status and the expected version;
// the loser of a race gets ErrVersionConflict.
type UpdateStatusParams struct {
	ID              uuid.UUID
	From            Status
	To              Status
	ExpectedVersion int64
	ApprovedBy      string
	ApprovedAt      time.Time
	RejectionReason string
	UpdatedAt       time.Time
}

// ErrVersionConflict indicates the request row moved on since it was read.
var ErrVersionConflict = errors.New("adjustment: request version conflict")

// Repository persists adjustment requests in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const requestColumns = `id, adjustment_number, sku_id, location_id, adjustment_type, quantity, unit_price,
adjustment_amount, reason_code, reason_text, remarks, status, stock_before, stock_after,
requires_approval, operator_id, operator_name, approved_by, approved_at, rejection_reason,
version, created_at, updated_at`

// GetRequest loads one request by id.
func (r *Repository) GetRequest(ctx context.Context, id uuid.UUID) (Request, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+`
FROM adjustment_requests WHERE id=$1`, id))
}

// ListPending returns all requests awaiting a decision, oldest first.
func (r *Repository) ListPending(ctx context.Context) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+`
FROM adjustment_requests WHERE status=$1 ORDER BY created_at ASC`, StatusPendingApproval)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

// ListByOperator returns the operator's own requests, newest first.
func (r *Repository) ListByOperator(ctx context.Context, operatorID string) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+`
FROM adjustment_requests WHERE operator_id=$1 ORDER BY created_at DESC`, operatorID)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (t *txRepo) InsertRequest(ctx context.Context, req Request) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO adjustment_requests (`+requestColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		req.ID, req.AdjustmentNumber, req.SKUID, req.LocationID, string(req.Type), req.Quantity, req.UnitPrice,
		req.Amount, req.ReasonCode, req.ReasonText, req.Remarks, string(req.Status), req.StockBefore, req.StockAfter,
		req.RequiresApproval, req.OperatorID, req.OperatorName, nullString(req.ApprovedBy), nullTime(req.ApprovedAt),
		nullString(req.RejectionReason), req.Version, req.CreatedAt, req.UpdatedAt)
	return err
}

func (t *txRepo) GetRequest(ctx context.Context, id uuid.UUID) (Request, error) {
	return scanRequest(t.tx.QueryRow(ctx, `SELECT `+requestColumns+`
FROM adjustment_requests WHERE id=$1`, id))
}

func (t *txRepo) UpdateStatus(ctx context.Context, params UpdateStatusParams) error {
	if !CanTransition(params.From, params.To) {
		return fmt.Errorf("adjustment: illegal transition %s -> %s: %w", params.From, params.To, ErrVersionConflict)
	}
	tag, err := t.tx.Exec(ctx, `UPDATE adjustment_requests
SET status=$1, version=version+1, updated_at=$2,
    approved_by=COALESCE(NULLIF($3,''), approved_by),
    approved_at=COALESCE($4, approved_at),
    rejection_reason=COALESCE(NULLIF($5,''), rejection_reason)
WHERE id=$6 AND status=$7 AND version=$8`,
		string(params.To), params.UpdatedAt, params.ApprovedBy, nullTime(params.ApprovedAt),
		params.RejectionReason, params.ID, string(params.From), params.ExpectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (t *txRepo) InsertDecision(ctx context.Context, d Decision) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO approval_decisions (request_id, approver_id, decision, comments, decided_at)
VALUES ($1, $2, $3, $4, $5)`, d.RequestID, d.ApproverID, string(d.Decision), d.Comments, d.DecidedAt)
	return err
}

func (t *txRepo) LedgerStore() ledger.Store {
	return ledger.NewRepository(t.tx)
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var typ, status string
	var approvedBy, rejectionReason *string
	var approvedAt *time.Time
	err := row.Scan(&req.ID, &req.AdjustmentNumber, &req.SKUID, &req.LocationID, &typ, &req.Quantity, &req.UnitPrice,
		&req.Amount, &req.ReasonCode, &req.ReasonText, &req.Remarks, &status, &req.StockBefore, &req.StockAfter,
		&req.RequiresApproval, &req.OperatorID, &req.OperatorName, &approvedBy, &approvedAt, &rejectionReason,
		&req.Version, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrRequestNotFound
		}
		return Request{}, err
	}
	req.Type = Type(typ)
	req.Status = Status(status)
	if approvedBy != nil {
		req.ApprovedBy = *approvedBy
	}
	if approvedAt != nil {
		req.ApprovedAt = *approvedAt
	}
	if rejectionReason != nil {
		req.RejectionReason = *rejectionReason
	}
	return req, nil
}

func collectRequests(rows pgx.Rows) ([]Request, error) {
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ErrRequestNotFound indicates an unknown request id.
var ErrRequestNotFound = errors.New("adjustment: request not found")

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
