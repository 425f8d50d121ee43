package adjustment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/stockgate/stockgate/internal/shared"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func newTestHandler(t *testing.T) (http.Handler, *Service, *memoryRepo) {
	t.Helper()
	svc, repo, _ := newTestService(t)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, nil)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		h.MountRoutes(r)
	})
	return router, svc, repo
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, op *shared.Operator) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if op != nil {
		req = req.WithContext(shared.ContextWithOperator(context.Background(), *op))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func validCreateBody() map[string]any {
	return map[string]any{
		"skuId":          "SKU-1001",
		"locationId":     "WH-A",
		"adjustmentType": "surplus",
		"quantity":       10,
		"unitPrice":      150,
		"reasonCode":     "CYCLE_COUNT",
		"remarks":        "cycle count delta",
	}
}

func TestHandlerCreatePendingRequest(t *testing.T) {
	router, _, repo := newTestHandler(t)
	seedLedger(repo, "SKU-1001", "WH-A", 50, 0)

	rec, env := doJSON(t, router, http.MethodPost, "/api/adjustments", validCreateBody(), &opRequester)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, env.Success)

	var view requestView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Equal(t, "pending_approval", view.Status)
	require.True(t, view.RequiresApproval)
	require.Equal(t, 1500.0, view.Amount)
	require.Equal(t, 50.0, view.StockBefore)
	require.Equal(t, 60.0, view.StockAfter)
	require.Equal(t, "ADJ20260115001", view.AdjustmentNumber)
}

func TestHandlerCreateAutoCompleted(t *testing.T) {
	router, _, repo := newTestHandler(t)
	seedLedger(repo, "SKU-1001", "WH-A", 50, 0)

	body := validCreateBody()
	body["quantity"] = 4
	body["unitPrice"] = 200

	rec, env := doJSON(t, router, http.MethodPost, "/api/adjustments", body, &opRequester)
	require.Equal(t, http.StatusCreated, rec.Code)

	var view requestView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Equal(t, "completed", view.Status)
	require.False(t, view.RequiresApproval)
	require.Equal(t, "system", view.ApprovedBy)
	require.NotNil(t, view.ApprovedAt)
}

func TestHandlerCreateValidationFailure(t *testing.T) {
	router, _, repo := newTestHandler(t)
	seedLedger(repo, "SKU-1001", "WH-A", 50, 0)

	body := validCreateBody()
	delete(body, "skuId")

	rec, env := doJSON(t, router, http.MethodPost, "/api/adjustments", body, &opRequester)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, env.Success)
	require.Equal(t, "INV_VAL_001", env.Error)
	require.NotEmpty(t, env.Message)
}

func TestHandlerCreateInvalidJSON(t *testing.T) {
	router, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/adjustments", bytes.NewBufferString("{not json"))
	req = req.WithContext(shared.ContextWithOperator(context.Background(), opRequester))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "INV_VAL_001", env.Error)
}

func TestHandlerRequiresAuthentication(t *testing.T) {
	router, _, _ := newTestHandler(t)

	rec, env := doJSON(t, router, http.MethodPost, "/api/adjustments", validCreateBody(), nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, env.Success)
	require.Equal(t, "INV_AUTH_001", env.Error)
}

func TestHandlerGetUnknownRequest(t *testing.T) {
	router, _, _ := newTestHandler(t)

	rec, env := doJSON(t, router, http.MethodGet, "/api/adjustments/"+uuid.NewString(), nil, &opRequester)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "INV_NTF_001", env.Error)

	// A malformed id cannot name any request either.
	rec, env = doJSON(t, router, http.MethodGet, "/api/adjustments/not-a-uuid", nil, &opRequester)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "INV_NTF_001", env.Error)
}

func TestHandlerApproveCompletes(t *testing.T) {
	router, svc, repo := newTestHandler(t)
	seedLedger(repo, "SKU-1001", "WH-A", 50, 0)

	req, err := svc.Create(context.Background(), createInput(opRequester))
	require.NoError(t, err)

	rec, env := doJSON(t, router, http.MethodPost, "/api/approvals/"+req.ID.String()+"/approve",
		map[string]any{"comments": "count verified"}, &opApprover)
	require.Equal(t, http.StatusOK, rec.Code)

	var view requestView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Equal(t, "completed", view.Status)
	require.Equal(t, opApprover.ID, view.ApprovedBy)
}

func TestHandlerApproveDecidedConflict(t *testing.T) {
	router, svc, repo := newTestHandler(t)
	seedLedger(repo, "SKU-1001", "WH-A", 50, 0)

	req, err := svc.Create(context.Background(), createInput(opRequester))
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), req.ID, opApprover, "")
	require.NoError(t, err)

	rec, env := doJSON(t, router, http.MethodPost, "/api/approvals/"+req.ID.String()+"/approve", nil, &opApprover)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.False(t, env.Success)
	require.Equal(t, "INV_BIZ_001", env.Error)
}

func TestHandlerApproveForbiddenForOperator(t *testing.T) {
	router, svc, repo := newTestHandler(t)
	seedLedger(repo, "SKU-1001", "WH-A", 50, 0)

	req, err := svc.Create(context.Background(), createInput(opRequester))
	require.NoError(t, err)

	rec, env := doJSON(t, router, http.MethodPost, "/api/approvals/"+req.ID.String()+"/approve", nil, &opRequester)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "INV_AUTH_001", env.Error)
}

func TestHandlerRejectRequiresReason(t *testing.T) {
	router, svc, repo := newTestHandler(t)
	seedLedger(repo, "SKU-1001", "WH-A", 50, 0)

	req, err := svc.Create(context.Background(), createInput(opRequester))
	require.NoError(t, err)

	rec, env := doJSON(t, router, http.MethodPost, "/api/approvals/"+req.ID.String()+"/reject",
		map[string]any{"reason": ""}, &opApprover)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INV_VAL_001", env.Error)
}

func TestHandlerRejectWithReason(t *testing.T) {
	router, svc, repo := newTestHandler(t)
	seedLedger(repo, "SKU-1001", "WH-A", 50, 0)

	req, err := svc.Create(context.Background(), createInput(opRequester))
	require.NoError(t, err)

	reason := "盘点数据存疑，需重新核对"
	rec, env := doJSON(t, router, http.MethodPost, "/api/approvals/"+req.ID.String()+"/reject",
		map[string]any{"reason": reason}, &opApprover)
	require.Equal(t, http.StatusOK, rec.Code)

	var view requestView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Equal(t, "rejected", view.Status)
	require.Equal(t, reason, view.RejectionReason)
}

func TestHandlerWithdrawForbiddenForNonOwner(t *testing.T) {
	router, svc, repo := newTestHandler(t)
	seedLedger(repo, "SKU-1001", "WH-A", 50, 0)

	req, err := svc.Create(context.Background(), createInput(opRequester))
	require.NoError(t, err)

	rec, env := doJSON(t, router, http.MethodPost, "/api/adjustments/"+req.ID.String()+"/withdraw", nil, &opOther)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "INV_AUTH_001", env.Error)
}

func TestHandlerListPending(t *testing.T) {
	router, svc, repo := newTestHandler(t)
	seedLedger(repo, "SKU-1001", "WH-A", 50, 0)

	_, err := svc.Create(context.Background(), createInput(opRequester))
	require.NoError(t, err)

	rec, env := doJSON(t, router, http.MethodGet, "/api/approvals/pending", nil, &opApprover)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []requestView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 1)
	require.Equal(t, "pending_approval", views[0].Status)
}
