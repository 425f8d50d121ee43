// Package auth authenticates API callers and attaches the operator identity
// to the request context. Authorization policy (who may approve what) stays
// outside; downstream code only checks roles and ownership.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/stockgate/stockgate/internal/platform/httpx"
	"github.com/stockgate/stockgate/internal/shared"
)

// Credential is an operator's stored API credential.
type Credential struct {
	OperatorID   string
	OperatorName string
	Roles        []string
	TokenHash    []byte
}

// CredentialStore loads credentials by operator id.
type CredentialStore interface {
	GetCredential(ctx context.Context, operatorID string) (Credential, error)
}

// ErrCredentialNotFound indicates an unknown operator id.
var ErrCredentialNotFound = errors.New("auth: credential not found")

// Middleware verifies bearer tokens of the form "<operatorId>.<secret>"
// against bcrypt hashes in the credential store.
type Middleware struct {
	logger *slog.Logger
	store  CredentialStore
}

// NewMiddleware constructs Middleware.
func NewMiddleware(logger *slog.Logger, store CredentialStore) *Middleware {
	return &Middleware{logger: logger, store: store}
}

// Authenticate rejects requests without a valid token and stores the
// operator in the request context otherwise.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op, err := m.operatorFromRequest(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithOperator(r.Context(), op)))
	})
}

func (m *Middleware) operatorFromRequest(r *http.Request) (shared.Operator, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return shared.Operator{}, fmt.Errorf("%w: missing bearer token", shared.ErrUnauthorized)
	}
	token := strings.TrimPrefix(header, "Bearer ")
	operatorID, secret, ok := strings.Cut(token, ".")
	if !ok || operatorID == "" || secret == "" {
		return shared.Operator{}, fmt.Errorf("%w: malformed token", shared.ErrUnauthorized)
	}

	cred, err := m.store.GetCredential(r.Context(), operatorID)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return shared.Operator{}, fmt.Errorf("%w: unknown operator", shared.ErrUnauthorized)
		}
		m.logger.Error("load credential", slog.Any("error", err))
		return shared.Operator{}, err
	}
	if err := bcrypt.CompareHashAndPassword(cred.TokenHash, []byte(secret)); err != nil {
		return shared.Operator{}, fmt.Errorf("%w: invalid token", shared.ErrUnauthorized)
	}
	return shared.Operator{ID: cred.OperatorID, Name: cred.OperatorName, Roles: cred.Roles}, nil
}

// HashToken produces the bcrypt hash stored for a token secret. Used by the
// seed script and operator provisioning.
func HashToken(secret string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
}
