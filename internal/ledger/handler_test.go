package ledger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/stockgate/stockgate/internal/shared"
)

type stubStore struct {
	records map[Key]Record
}

func (s stubStore) Get(_ context.Context, key Key) (Record, error) {
	rec, ok := s.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s stubStore) CompareAndSwap(_ context.Context, rec Record, _ int64) (Record, error) {
	return rec, nil
}

func newLedgerRouter(store Store) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), store)
	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		h.MountRoutes(r)
	})
	return router
}

func getLedger(router http.Handler, path string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authed {
		req = req.WithContext(shared.ContextWithOperator(context.Background(),
			shared.Operator{ID: "op-001", Roles: []string{shared.RoleOperator}}))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerGetRecord(t *testing.T) {
	store := stubStore{records: map[Key]Record{
		{SKUID: "SKU-1001", LocationID: "WH-A"}: {
			SKUID: "SKU-1001", LocationID: "WH-A",
			OnHandQty: 50, AvailableQty: 45, ReservedQty: 5,
			Version:     3,
			LastUpdated: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		},
	}}

	rec := getLedger(newLedgerRouter(store), "/api/ledger/SKU-1001/WH-A", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Success bool       `json:"success"`
		Data    recordView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success)
	require.Equal(t, 50.0, env.Data.OnHandQty)
	require.Equal(t, 45.0, env.Data.AvailableQty)
	require.Equal(t, int64(3), env.Data.Version)
	require.Equal(t, "2026-01-15T10:00:00Z", env.Data.LastUpdated)
}

func TestHandlerGetUnknownRecord(t *testing.T) {
	rec := getLedger(newLedgerRouter(stubStore{}), "/api/ledger/SKU-9999/WH-A", true)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var env struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.False(t, env.Success)
	require.Equal(t, "INV_NTF_001", env.Error)
}

func TestHandlerGetUnauthenticated(t *testing.T) {
	rec := getLedger(newLedgerRouter(stubStore{}), "/api/ledger/SKU-1001/WH-A", false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
