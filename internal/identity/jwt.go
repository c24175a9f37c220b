// Package identity verifies bearer tokens minted by the external credential
// service and turns them into principals. The core never issues production
// tokens; GenerateToken exists for development seeding and tests.
package identity

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"caretrack/internal/domain"
	pkgerrors "caretrack/pkg/errors"
)

// Claims are the claims the credential service puts in access tokens.
type Claims struct {
	Role          string `json:"role"`
	BoundClientID int64  `json:"client_id,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks a bearer token and resolves the connecting principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (domain.Principal, error)
}

// JWTVerifier validates HS256 tokens against a shared signing key.
type JWTVerifier struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTVerifier(signingKey, issuer, audience string) *JWTVerifier {
	return &JWTVerifier{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// Verify parses and validates the token, returning the principal it encodes.
// Every failure maps to CodeUnauthenticated; callers drop the connection.
func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (domain.Principal, error) {
	if tokenString == "" {
		return domain.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthenticated, "authentication token required")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthenticated, "token has expired")
		}
		return domain.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthenticated, "invalid token")
	}
	if !parsed.Valid {
		return domain.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthenticated, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return domain.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthenticated, "invalid token claims")
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return domain.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthenticated, "invalid token subject")
	}
	role := domain.Role(claims.Role)
	if !role.Valid() {
		return domain.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthenticated, "unknown role")
	}

	return domain.Principal{
		ID:            id,
		Role:          role,
		BoundClientID: claims.BoundClientID,
	}, nil
}

// GenerateToken mints a signed token for the given principal. Used by the dev
// seed path and tests; production tokens come from the credential service.
func (v *JWTVerifier) GenerateToken(p domain.Principal, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:          string(p.Role),
		BoundClientID: p.BoundClientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.ID, 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    v.issuer,
			Audience:  []string{v.audience},
			ID:        uuid.NewString(),
		},
	})
	return newToken.SignedString(v.signingKey)
}
