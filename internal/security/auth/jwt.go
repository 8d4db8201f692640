package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
)

// Token validation failures. All of them surface as 401.
var (
	ErrExpiredCredential = domain.NewError(domain.ErrCodeUnauthorized, "Token has expired")
	ErrInvalidSignature  = domain.NewError(domain.ErrCodeUnauthorized, "Could not validate credentials")
	ErrMalformed         = domain.NewError(domain.ErrCodeUnauthorized, "Malformed token")
	ErrInactivePrincipal = domain.ErrAccountInactive
)

// Claims is the token payload.
type Claims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the identity a token is issued for.
type Principal struct {
	Subject string
	Email   string
	Role    domain.Role
}

// TokenManager issues and validates HS256 access tokens.
type TokenManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenManager returns a manager signing with secret. The secret must not
// be empty.
func NewTokenManager(secret, issuer string) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("token signing secret is required")
	}
	if issuer == "" {
		issuer = "propertyhub"
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// WithClock returns a copy of tm that reads time from now.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	cp := *tm
	cp.now = now
	return &cp
}

// IssueToken signs a token for p that expires after ttl.
func (tm *TokenManager) IssueToken(p Principal, ttl time.Duration) (string, time.Time, error) {
	if p.Subject == "" {
		return "", time.Time{}, errors.New("token subject is required")
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	now := tm.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Email: p.Email,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.Subject,
			Issuer:    tm.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// IssueFor signs a token for user. Accounts that are not active are refused.
func (tm *TokenManager) IssueFor(user *domain.User, ttl time.Duration) (string, time.Time, error) {
	if !user.CanAuthenticate() {
		return "", time.Time{}, ErrInactivePrincipal
	}
	return tm.IssueToken(Principal{Subject: user.ID, Email: user.Email, Role: user.Role}, ttl)
}

// ValidateToken verifies the signature, algorithm, issuer and expiry of raw.
func (tm *TokenManager) ValidateToken(raw string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return tm.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredCredential
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, ErrInvalidSignature
	default:
		return nil, ErrMalformed
	}

	if claims.Subject == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

// ExtractToken returns the credentials of a "Bearer <token>" header.
func ExtractToken(authHeader string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("invalid authorization header")
	}
	return strings.TrimSpace(token), nil
}
