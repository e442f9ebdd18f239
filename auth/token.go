package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuerName = "messenger"

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// Claims defines the structure of the data stored inside the JWT.
// Kind separates access from refresh tokens so one can never be
// presented in place of the other.
type Claims struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	jwt.RegisteredClaims
}

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenIssuer mints and verifies both halves of a token pair. Access and
// refresh tokens are signed with separate secrets, so leaking one secret
// never compromises the other class of token.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// Pair mints a fresh access+refresh pair for a user.
func (t *TokenIssuer) Pair(userID uuid.UUID) (TokenPair, error) {
	access, err := t.sign(userID, kindAccess, t.accessSecret, t.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.sign(userID, kindRefresh, t.refreshSecret, t.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (t *TokenIssuer) sign(userID uuid.UUID, kind string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID.String(),
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuerName,
		},
	}

	// HS256: HMAC with SHA256, same as every other token in the system.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// VerifyAccess parses and validates an access token string.
func (t *TokenIssuer) VerifyAccess(tokenString string) (*Claims, error) {
	return t.verify(tokenString, kindAccess, t.accessSecret)
}

// VerifyRefresh parses and validates a refresh token string.
func (t *TokenIssuer) VerifyRefresh(tokenString string) (*Claims, error) {
	return t.verify(tokenString, kindRefresh, t.refreshSecret)
}

func (t *TokenIssuer) verify(tokenString, kind string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("unexpected token kind %q", claims.Kind)
	}
	return claims, nil
}

// Subject extracts the user id carried by the claims.
func (c *Claims) Subject() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}
