package auth

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/assetverse/internal/store"
)

// Verifier turns a bearer token into the caller's claims. The HTTP layer
// depends only on this interface so an external identity provider can stand
// in for the built-in one.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// JWTVerifier validates tokens signed with Secret and rejects any whose JTI
// is on the revocation list in DB.
type JWTVerifier struct {
	Secret string
	DB     *sql.DB
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	claims, err := ValidateToken(v.Secret, token)
	if err != nil {
		return nil, err
	}

	if v.DB != nil {
		revoked, err := store.IsTokenRevoked(ctx, v.DB, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("checking revocation: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
		}
	}

	return claims, nil
}
