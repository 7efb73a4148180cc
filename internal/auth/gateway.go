package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "kolo"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrMissingToken = errors.New("missing bearer token")
)

// Identity is the authenticated principal behind a bearer token.
type Identity struct {
	UserID    string
	Phone     string
	ExpiresAt time.Time
}

// Gateway resolves bearer tokens to identities.
type Gateway interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Claims is the access token payload.
type Claims struct {
	Phone string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// JWTGateway issues and verifies HS256 access tokens.
type JWTGateway struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTGateway builds a gateway signing with secret; tokens live for ttl.
func NewJWTGateway(secret string, ttl time.Duration) *JWTGateway {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &JWTGateway{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs an access token for userID.
func (g *JWTGateway) Issue(userID, phone string) (string, time.Time, error) {
	now := g.now()
	exp := now.Add(g.ttl)
	claims := Claims{
		Phone: phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm, issuer and expiry, and returns the token's identity.
func (g *JWTGateway) Verify(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingToken
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	id := Identity{UserID: claims.Subject, Phone: claims.Phone}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}
