package adjustment

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stockgate/stockgate/internal/observability"
	"github.com/stockgate/stockgate/internal/platform/httpx"
	"github.com/stockgate/stockgate/internal/shared"
)

// Handler wires the adjustment and approval endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), metrics: metrics}
}

// MountRoutes registers routes under /api.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/adjustments", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/my", h.listMine)
		r.Get("/{id}", h.get)
		r.Post("/{id}/withdraw", h.withdraw)
	})
	r.Route("/approvals", func(r chi.Router) {
		r.Get("/pending", h.listPending)
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
	})
}

type createPayload struct {
	SKUID      string  `json:"skuId" validate:"required"`
	LocationID string  `json:"locationId" validate:"required"`
	Type       string  `json:"adjustmentType" validate:"required,oneof=surplus shortage"`
	Quantity   float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice  float64 `json:"unitPrice" validate:"gte=0"`
	ReasonCode string  `json:"reasonCode" validate:"required"`
	ReasonText string  `json:"reasonText"`
	Remarks    string  `json:"remarks" validate:"max=500"`
}

type decisionPayload struct {
	Comments string `json:"comments"`
	Reason   string `json:"reason"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	op, ok := shared.OperatorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var payload createPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, httpx.CodeValidation, validationMessage(err))
		return
	}

	req, err := h.service.Create(r.Context(), CreateInput{
		SKUID:          payload.SKUID,
		LocationID:     payload.LocationID,
		Type:           Type(payload.Type),
		Quantity:       payload.Quantity,
		UnitPrice:      payload.UnitPrice,
		ReasonCode:     payload.ReasonCode,
		ReasonText:     payload.ReasonText,
		Remarks:        payload.Remarks,
		Operator:       op,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.logger.Warn("create adjustment failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("adjustment created",
		slog.String("number", req.AdjustmentNumber),
		slog.String("status", string(req.Status)),
		slog.Bool("requires_approval", req.RequiresApproval))
	h.metrics.RecordAdjustment(string(req.Status))
	httpx.JSON(w, http.StatusCreated, toView(req))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	op, ok := shared.OperatorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	id, err := requestID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Get(r.Context(), id, op)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(req))
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	op, ok := shared.OperatorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	reqs, err := h.service.ListMine(r.Context(), op)
	if err != nil {
		h.logger.Error("list own adjustments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toViews(reqs))
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	op, ok := shared.OperatorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	reqs, err := h.service.ListPending(r.Context(), op)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toViews(reqs))
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	op, ok := shared.OperatorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	id, err := requestID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload decisionPayload
	_ = httpx.DecodeJSON(r, &payload)

	req, err := h.service.Approve(r.Context(), id, op, payload.Comments)
	if err != nil {
		h.logger.Warn("approve failed",
			slog.String("request_id", id.String()),
			slog.Any("error", err))
		h.metrics.RecordConflictRetryable(err)
		httpx.RespondError(w, err)
		return
	}
	h.metrics.RecordAdjustment(string(req.Status))
	httpx.JSON(w, http.StatusOK, toView(req))
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	op, ok := shared.OperatorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	id, err := requestID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var payload decisionPayload
	_ = httpx.DecodeJSON(r, &payload)

	req, err := h.service.Reject(r.Context(), id, op, payload.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.metrics.RecordAdjustment(string(req.Status))
	httpx.JSON(w, http.StatusOK, toView(req))
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	op, ok := shared.OperatorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	id, err := requestID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Withdraw(r.Context(), id, op)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.metrics.RecordAdjustment(string(req.Status))
	httpx.JSON(w, http.StatusOK, toView(req))
}

func requestID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: adjustment request %s", shared.ErrNotFound, chi.URLParam(r, "id"))
	}
	return id, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must not be negative", fe.Field())
	case "max":
		return fmt.Sprintf("%s exceeds %s characters", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

// requestView is the JSON shape returned by every endpoint.
type requestView struct {
	ID               string   `json:"id"`
	AdjustmentNumber string   `json:"adjustmentNumber"`
	SKUID            string   `json:"skuId"`
	LocationID       string   `json:"locationId"`
	Type             string   `json:"adjustmentType"`
	Quantity         float64  `json:"quantity"`
	UnitPrice        float64  `json:"unitPrice"`
	Amount           float64  `json:"adjustmentAmount"`
	ReasonCode       string   `json:"reasonCode"`
	ReasonText       string   `json:"reasonText,omitempty"`
	Remarks          string   `json:"remarks,omitempty"`
	Status           string   `json:"status"`
	StockBefore      float64  `json:"stockBefore"`
	StockAfter       float64  `json:"stockAfter"`
	RequiresApproval bool     `json:"requiresApproval"`
	OperatorID       string   `json:"operatorId"`
	OperatorName     string   `json:"operatorName"`
	ApprovedBy       string   `json:"approvedBy,omitempty"`
	ApprovedAt       *string  `json:"approvedAt,omitempty"`
	RejectionReason  string   `json:"rejectionReason,omitempty"`
	CreatedAt        string   `json:"createdAt"`
	UpdatedAt        string   `json:"updatedAt"`
}

func toView(req Request) requestView {
	v := requestView{
		ID:               req.ID.String(),
		AdjustmentNumber: req.AdjustmentNumber,
		SKUID:            req.SKUID,
		LocationID:       req.LocationID,
		Type:             string(req.Type),
		Quantity:         req.Quantity,
		UnitPrice:        req.UnitPrice,
		Amount:           req.Amount,
		ReasonCode:       req.ReasonCode,
		ReasonText:       req.ReasonText,
		Remarks:          req.Remarks,
		Status:           string(req.Status),
		StockBefore:      req.StockBefore,
		StockAfter:       req.StockAfter,
		RequiresApproval: req.RequiresApproval,
		OperatorID:       req.OperatorID,
		OperatorName:     req.OperatorName,
		ApprovedBy:       req.ApprovedBy,
		RejectionReason:  req.RejectionReason,
		CreatedAt:        req.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        req.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if !req.ApprovedAt.IsZero() {
		at := req.ApprovedAt.UTC().Format(time.RFC3339)
		v.ApprovedAt = &at
	}
	return v
}

func toViews(reqs []Request) []requestView {
	out := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, toView(req))
	}
	return out
}
