package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockgate/stockgate/internal/platform/httpx"
	"github.com/stockgate/stockgate/internal/shared"
)

// Handler exposes read access to ledger snapshots.
type Handler struct {
	logger *slog.Logger
	store  Store
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, store Store) *Handler {
	return &Handler{logger: logger, store: store}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ledger/{skuId}/{locationId}", h.get)
}

type recordView struct {
	SKUID        string  `json:"skuId"`
	LocationID   string  `json:"locationId"`
	OnHandQty    float64 `json:"onHandQty"`
	AvailableQty float64 `json:"availableQty"`
	ReservedQty  float64 `json:"reservedQty"`
	InTransitQty float64 `json:"inTransitQty"`
	Version      int64   `json:"version"`
	LastUpdated  string  `json:"lastUpdated"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	if _, ok := shared.OperatorFromContext(r.Context()); !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	key := Key{SKUID: chi.URLParam(r, "skuId"), LocationID: chi.URLParam(r, "locationId")}
	rec, err := h.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, fmt.Errorf("%w: ledger record %s/%s", shared.ErrNotFound, key.SKUID, key.LocationID))
			return
		}
		h.logger.Error("get ledger record", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, recordView{
		SKUID:        rec.SKUID,
		LocationID:   rec.LocationID,
		OnHandQty:    rec.OnHandQty,
		AvailableQty: rec.AvailableQty,
		ReservedQty:  rec.ReservedQty,
		InTransitQty: rec.InTransitQty,
		Version:      rec.Version,
		LastUpdated:  rec.LastUpdated.UTC().Format(time.RFC3339),
	})
}
