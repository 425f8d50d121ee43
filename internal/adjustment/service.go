package adjustment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/stockgate/stockgate/internal/ledger"
	"github.com/stockgate/stockgate/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the adjustment workflow: request creation with the
// threshold gate, approval decisions, ledger mutation and withdrawal.
type Service struct {
	repo        RepositoryPort
	threshold   Threshold
	sequencer   Sequencer
	engine      *Engine
	events      EmitterPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	now         func() time.Time

	pendingGroup singleflight.Group
}

// NewService builds Service. events, audit and idempotency may be nil; now
// defaults to time.Now.
func NewService(repo RepositoryPort, threshold Threshold, sequencer Sequencer, events EmitterPort, audit AuditPort, idem *shared.IdempotencyStore, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:        repo,
		threshold:   threshold,
		sequencer:   sequencer,
		engine:      NewEngine(now),
		events:      events,
		audit:       audit,
		idempotency: idem,
		now:         now,
	}
}

// CreateInput describes a new adjustment request.
type CreateInput struct {
	SKUID      string
	LocationID string
	Type       Type
	Quantity   float64
	UnitPrice  float64
	ReasonCode string
	ReasonText string
	Remarks    string
	Operator   shared.Operator
	// IdempotencyKey, when set, dedupes retried creates.
	IdempotencyKey string
}

func (in CreateInput) validate() error {
	switch {
	case strings.TrimSpace(in.SKUID) == "":
		return fmt.Errorf("%w: skuId is required", shared.ErrValidation)
	case strings.TrimSpace(in.LocationID) == "":
		return fmt.Errorf("%w: locationId is required", shared.ErrValidation)
	case !in.Type.Valid():
		return fmt.Errorf("%w: adjustmentType must be surplus or shortage", shared.ErrValidation)
	case in.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
	case in.UnitPrice < 0:
		return fmt.Errorf("%w: unitPrice must not be negative", shared.ErrValidation)
	case strings.TrimSpace(in.ReasonCode) == "":
		return fmt.Errorf("%w: reasonCode is required", shared.ErrValidation)
	case len([]rune(in.Remarks)) > MaxRemarksLen:
		return fmt.Errorf("%w: remarks exceed %d characters", shared.ErrValidation, MaxRemarksLen)
	}
	return nil
}

// Create validates the input, previews the ledger impact and persists the
// request. Amounts below the threshold are applied to the ledger
// synchronously inside the same transaction, so the caller never observes an
// approved-but-not-mutated state on this path: the call returns `completed`
// or an error with nothing persisted.
func (s *Service) Create(ctx context.Context, in CreateInput) (Request, error) {
	if err := in.validate(); err != nil {
		return Request{}, err
	}

	insertedKey := false
	if in.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, "adjustment.create:"+in.IdempotencyKey, "adjustment"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Request{}, fmt.Errorf("%w: request with this idempotency key was already processed", shared.ErrConflict)
			}
			return Request{}, err
		}
		insertedKey = true
	}

	now := s.now().UTC()
	number, err := s.sequencer.Next(ctx, now)
	if err != nil {
		s.rollbackKey(ctx, in, insertedKey)
		return Request{}, err
	}

	amount := in.Quantity * in.UnitPrice
	delta := in.Quantity
	if in.Type == TypeShortage {
		delta = -in.Quantity
	}

	req := Request{
		ID:               uuid.New(),
		AdjustmentNumber: number,
		SKUID:            in.SKUID,
		LocationID:       in.LocationID,
		Type:             in.Type,
		Quantity:         in.Quantity,
		UnitPrice:        in.UnitPrice,
		Amount:           amount,
		ReasonCode:       in.ReasonCode,
		ReasonText:       in.ReasonText,
		Remarks:          in.Remarks,
		RequiresApproval: s.threshold.RequiresApproval(amount),
		OperatorID:       in.Operator.ID,
		OperatorName:     in.Operator.Name,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		store := tx.LedgerStore()
		rec, err := store.Get(ctx, ledger.Key{SKUID: in.SKUID, LocationID: in.LocationID})
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return fmt.Errorf("%w: ledger record %s/%s", shared.ErrNotFound, in.SKUID, in.LocationID)
			}
			return err
		}
		req.StockBefore = rec.OnHandQty
		req.StockAfter = rec.OnHandQty + delta

		if req.RequiresApproval {
			req.Status = StatusPendingApproval
			return tx.InsertRequest(ctx, req)
		}

		// Auto-approved path: request persist and ledger mutate are one
		// unit of work.
		req.Status = StatusApproved
		req.ApprovedBy = "system"
		req.ApprovedAt = now
		if err := tx.InsertRequest(ctx, req); err != nil {
			return err
		}
		if _, err := s.engine.Apply(ctx, store, req); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, UpdateStatusParams{
			ID:              req.ID,
			From:            StatusApproved,
			To:              StatusCompleted,
			ExpectedVersion: req.Version,
			UpdatedAt:       now,
		}); err != nil {
			return err
		}
		req.Status = StatusCompleted
		req.Version++
		return nil
	})
	if err != nil {
		s.rollbackKey(ctx, in, insertedKey)
		if errors.Is(err, ErrVersionConflict) {
			return Request{}, fmt.Errorf("%w: request state changed concurrently", shared.ErrConflict)
		}
		return Request{}, err
	}

	s.recordAudit(ctx, in.Operator.ID, "ADJ_CREATE", req, map[string]any{
		"amount": req.Amount, "requires_approval": req.RequiresApproval,
	})
	s.emit(ctx, EventCreated, req, in.Operator.ID)
	if req.Status == StatusCompleted {
		s.emit(ctx, EventCompleted, req, in.Operator.ID)
	}
	return req, nil
}

// Get returns a request visible to the caller: the requester or an approver.
func (s *Service) Get(ctx context.Context, id uuid.UUID, op shared.Operator) (Request, error) {
	req, err := s.getRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.OperatorID != op.ID && !op.HasRole(shared.RoleApprover) {
		return Request{}, fmt.Errorf("%w: not the requester", shared.ErrForbidden)
	}
	return req, nil
}

// ListPending returns all requests awaiting approval. Concurrent callers
// share one repository read.
func (s *Service) ListPending(ctx context.Context, op shared.Operator) ([]Request, error) {
	if !op.HasRole(shared.RoleApprover) {
		return nil, fmt.Errorf("%w: approver role required", shared.ErrForbidden)
	}
	v, err, _ := s.pendingGroup.Do("pending", func() (any, error) {
		return s.repo.ListPending(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Request), nil
}

// ListMine returns the caller's own requests.
func (s *Service) ListMine(ctx context.Context, op shared.Operator) ([]Request, error) {
	return s.repo.ListByOperator(ctx, op.ID)
}

// Withdraw cancels a still-pending request. Only the original operator may
// withdraw; the ledger is never touched.
func (s *Service) Withdraw(ctx context.Context, id uuid.UUID, op shared.Operator) (Request, error) {
	req, err := s.getRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.OperatorID != op.ID {
		return Request{}, fmt.Errorf("%w: only the requester may withdraw", shared.ErrForbidden)
	}
	if req.Status != StatusPendingApproval {
		return Request{}, fmt.Errorf("%w: request %s is %s, not pending approval", shared.ErrConflict, req.AdjustmentNumber, req.Status)
	}

	now := s.now().UTC()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, UpdateStatusParams{
			ID:              req.ID,
			From:            StatusPendingApproval,
			To:              StatusWithdrawn,
			ExpectedVersion: req.Version,
			UpdatedAt:       now,
		})
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return Request{}, fmt.Errorf("%w: request state changed concurrently", shared.ErrConflict)
		}
		return Request{}, err
	}
	req.Status = StatusWithdrawn
	req.Version++
	req.UpdatedAt = now

	s.recordAudit(ctx, op.ID, "ADJ_WITHDRAW", req, nil)
	s.emit(ctx, EventWithdrawn, req, op.ID)
	return req, nil
}

func (s *Service) getRequest(ctx context.Context, id uuid.UUID) (Request, error) {
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return Request{}, fmt.Errorf("%w: adjustment request %s", shared.ErrNotFound, id)
		}
		return Request{}, err
	}
	return req, nil
}

func (s *Service) rollbackKey(ctx context.Context, in CreateInput, inserted bool) {
	if inserted {
		_ = s.idempotency.Delete(ctx, "adjustment.create:"+in.IdempotencyKey)
	}
}

func (s *Service) emit(ctx context.Context, kind EventKind, req Request, actorID string) {
	if s.events == nil {
		return
	}
	_ = s.events.Emit(ctx, Event{
		Kind:             kind,
		RequestID:        req.ID,
		AdjustmentNumber: req.AdjustmentNumber,
		SKUID:            req.SKUID,
		LocationID:       req.LocationID,
		Type:             req.Type,
		Quantity:         req.Quantity,
		Amount:           req.Amount,
		Status:           req.Status,
		ActorID:          actorID,
		OccurredAt:       s.now().UTC(),
	})
}

func (s *Service) recordAudit(ctx context.Context, actorID, action string, req Request, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["sku_id"] = req.SKUID
	meta["location_id"] = req.LocationID
	meta["status"] = string(req.Status)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "adjustment_request",
		EntityID: req.AdjustmentNumber,
		Meta:     meta,
	})
}
