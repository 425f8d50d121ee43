package adjustment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/stockgate/stockgate/internal/shared"
)

// Approve grants a pending request and applies it to the ledger. The status
// transition and the decision record commit first; the ledger mutation runs
// in a second unit of work. When the ledger CAS fails the request stays
// `approved` — a deliberate, operator-visible state that needs a manual
// reload-and-retry, never an automatic one.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, op shared.Operator, comments string) (Request, error) {
	if !op.HasRole(shared.RoleApprover) {
		return Request{}, fmt.Errorf("%w: approver role required", shared.ErrForbidden)
	}
	req, err := s.getRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusPendingApproval {
		return Request{}, fmt.Errorf("%w: request %s is %s, not pending approval", shared.ErrConflict, req.AdjustmentNumber, req.Status)
	}

	now := s.now().UTC()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, UpdateStatusParams{
			ID:              req.ID,
			From:            StatusPendingApproval,
			To:              StatusApproved,
			ExpectedVersion: req.Version,
			ApprovedBy:      op.ID,
			ApprovedAt:      now,
			UpdatedAt:       now,
		}); err != nil {
			return err
		}
		return tx.InsertDecision(ctx, Decision{
			RequestID:  req.ID,
			ApproverID: op.ID,
			Decision:   DecisionApprove,
			Comments:   comments,
			DecidedAt:  now,
		})
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return Request{}, fmt.Errorf("%w: request was decided concurrently", shared.ErrConflict)
		}
		return Request{}, err
	}
	req.Status = StatusApproved
	req.Version++
	req.ApprovedBy = op.ID
	req.ApprovedAt = now
	req.UpdatedAt = now

	s.recordAudit(ctx, op.ID, "ADJ_APPROVE", req, map[string]any{"comments": comments})
	s.emit(ctx, EventApproved, req, op.ID)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := s.engine.Apply(ctx, tx.LedgerStore(), req); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, UpdateStatusParams{
			ID:              req.ID,
			From:            StatusApproved,
			To:              StatusCompleted,
			ExpectedVersion: req.Version,
			UpdatedAt:       now,
		})
	})
	if err != nil {
		// The request stays `approved`; surface the conflict for manual
		// follow-up.
		if errors.Is(err, ErrVersionConflict) {
			return req, fmt.Errorf("%w: ledger applied concurrently, request left approved", shared.ErrConflict)
		}
		return req, err
	}
	req.Status = StatusCompleted
	req.Version++

	s.recordAudit(ctx, op.ID, "ADJ_COMPLETE", req, nil)
	s.emit(ctx, EventCompleted, req, op.ID)
	return req, nil
}

// Reject declines a pending request with a mandatory reason. The ledger is
// never touched on this path.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, op shared.Operator, reason string) (Request, error) {
	if !op.HasRole(shared.RoleApprover) {
		return Request{}, fmt.Errorf("%w: approver role required", shared.ErrForbidden)
	}
	if strings.TrimSpace(reason) == "" {
		return Request{}, fmt.Errorf("%w: rejection reason is required", shared.ErrValidation)
	}
	req, err := s.getRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusPendingApproval {
		return Request{}, fmt.Errorf("%w: request %s is %s, not pending approval", shared.ErrConflict, req.AdjustmentNumber, req.Status)
	}

	now := s.now().UTC()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, UpdateStatusParams{
			ID:              req.ID,
			From:            StatusPendingApproval,
			To:              StatusRejected,
			ExpectedVersion: req.Version,
			RejectionReason: reason,
			UpdatedAt:       now,
		}); err != nil {
			return err
		}
		return tx.InsertDecision(ctx, Decision{
			RequestID:  req.ID,
			ApproverID: op.ID,
			Decision:   DecisionReject,
			Comments:   reason,
			DecidedAt:  now,
		})
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return Request{}, fmt.Errorf("%w: request was decided concurrently", shared.ErrConflict)
		}
		return Request{}, err
	}
	req.Status = StatusRejected
	req.Version++
	req.RejectionReason = reason
	req.UpdatedAt = now

	s.recordAudit(ctx, op.ID, "ADJ_REJECT", req, map[string]any{"reason": reason})
	s.emit(ctx, EventRejected, req, op.ID)
	return req, nil
}
