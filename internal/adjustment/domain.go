package adjustment

import (
	"time"

	"github.com/google/uuid"
)

// Type enumerates adjustment directions.
type Type string

const (
	// TypeSurplus adds counted surplus to on-hand stock.
	TypeSurplus Type = "surplus"
	// TypeShortage removes counted shortage from on-hand stock.
	TypeShortage Type = "shortage"
)

// Valid reports whether t is a known adjustment type.
func (t Type) Valid() bool {
	return t == TypeSurplus || t == TypeShortage
}

// Status is the request lifecycle state.
type Status string

const (
	// StatusPendingApproval waits for a human decision.
	StatusPendingApproval Status = "pending_approval"
	// StatusApproved is granted but not yet applied to the ledger. A request
	// stuck here after a CAS failure needs manual follow-up.
	StatusApproved Status = "approved"
	// StatusCompleted means the ledger was mutated exactly once.
	StatusCompleted Status = "completed"
	// StatusRejected is terminal; the ledger was never touched.
	StatusRejected Status = "rejected"
	// StatusWithdrawn is terminal; the requester cancelled while pending.
	StatusWithdrawn Status = "withdrawn"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

// transitions is the exhaustive state machine table. Any pair missing here is
// an illegal transition.
var transitions = map[Status][]Status{
	StatusPendingApproval: {StatusApproved, StatusRejected, StatusWithdrawn},
	StatusApproved:        {StatusCompleted},
	StatusCompleted:       {},
	StatusRejected:        {},
	StatusWithdrawn:       {},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// MaxRemarksLen bounds the free-text remarks field.
const MaxRemarksLen = 500

// Request is an operator-initiated stock correction. It references exactly
// one ledger record by (SKUID, LocationID) and becomes immutable once in a
// terminal status. Version is the optimistic lock on the request row itself.
type Request struct {
	ID               uuid.UUID
	AdjustmentNumber string
	SKUID            string
	LocationID       string
	Type             Type
	Quantity         float64
	UnitPrice        float64
	Amount           float64
	ReasonCode       string
	ReasonText       string
	Remarks          string
	Status           Status
	StockBefore      float64
	StockAfter       float64
	RequiresApproval bool
	OperatorID       string
	OperatorName     string
	ApprovedBy       string
	ApprovedAt       time.Time
	RejectionReason  string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DecisionKind enumerates human decisions.
type DecisionKind string

const (
	// DecisionApprove grants the adjustment.
	DecisionApprove DecisionKind = "approve"
	// DecisionReject declines the adjustment.
	DecisionReject DecisionKind = "reject"
)

// Decision records one terminal human decision on a request.
type Decision struct {
	ID         int64
	RequestID  uuid.UUID
	ApproverID string
	Decision   DecisionKind
	Comments   string
	DecidedAt  time.Time
}
