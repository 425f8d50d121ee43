package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockgate/stockgate/internal/shared"
)

type memoryCredentials struct {
	creds map[string]Credential
}

func (m memoryCredentials) GetCredential(_ context.Context, operatorID string) (Credential, error) {
	cred, ok := m.creds[operatorID]
	if !ok {
		return Credential{}, ErrCredentialNotFound
	}
	return cred, nil
}

func newAuthedChain(t *testing.T) http.Handler {
	t.Helper()
	hash, err := HashToken("secret-token")
	require.NoError(t, err)

	store := memoryCredentials{creds: map[string]Credential{
		"op-001": {
			OperatorID:   "op-001",
			OperatorName: "Warehouse Operator",
			Roles:        []string{shared.RoleOperator},
			TokenHash:    hash,
		},
	}}

	mw := NewMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)), store)
	return mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func authedRequest(handler http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/adjustments/my", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateValidToken(t *testing.T) {
	hash, err := HashToken("secret-token")
	require.NoError(t, err)

	store := memoryCredentials{creds: map[string]Credential{
		"op-001": {
			OperatorID:   "op-001",
			OperatorName: "Warehouse Operator",
			Roles:        []string{shared.RoleOperator, shared.RoleApprover},
			TokenHash:    hash,
		},
	}}

	var seen shared.Operator
	mw := NewMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)), store)
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = shared.OperatorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := authedRequest(handler, "Bearer op-001.secret-token")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "op-001", seen.ID)
	require.Equal(t, "Warehouse Operator", seen.Name)
	require.True(t, seen.HasRole(shared.RoleApprover))
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	handler := newAuthedChain(t)

	cases := map[string]string{
		"missing header":   "",
		"not bearer":       "Basic op-001.secret-token",
		"malformed token":  "Bearer op-001",
		"unknown operator": "Bearer op-999.secret-token",
		"wrong secret":     "Bearer op-001.wrong-token",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec := authedRequest(handler, header)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Contains(t, rec.Body.String(), "INV_AUTH_001")
		})
	}
}
