package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads operator credentials from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetCredential returns the stored credential for the operator id.
func (r *Repository) GetCredential(ctx context.Context, operatorID string) (Credential, error) {
	var cred Credential
	err := r.pool.QueryRow(ctx, `SELECT operator_id, operator_name, roles, token_hash
FROM operators WHERE operator_id=$1`, operatorID).
		Scan(&cred.OperatorID, &cred.OperatorName, &cred.Roles, &cred.TokenHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrCredentialNotFound
		}
		return Credential{}, err
	}
	return cred, nil
}
