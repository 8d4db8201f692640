package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
)

func newTestManager(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager("test-secret-key", "propertyhub")
	require.NoError(t, err)
	return tm
}

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	_, err := NewTokenManager("", "propertyhub")
	require.Error(t, err)
}

func TestIssueAndValidate_Roundtrip(t *testing.T) {
	tm := newTestManager(t)

	raw, exp, err := tm.IssueToken(Principal{Subject: "u-1", Email: "ann@example.com", Role: domain.RoleLandlord}, 30*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), exp, 2*time.Second)

	claims, err := tm.ValidateToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "ann@example.com", claims.Email)
	assert.Equal(t, domain.RoleLandlord, claims.Role)
	assert.Equal(t, "propertyhub", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.IssuedAt)
	require.NotNil(t, claims.ExpiresAt)
	assert.Equal(t, exp.Unix(), claims.ExpiresAt.Unix())
}

func TestValidateToken_Expired(t *testing.T) {
	tm := newTestManager(t)
	issuedAt := time.Now().Add(-2 * time.Hour)

	raw, _, err := tm.WithClock(func() time.Time { return issuedAt }).
		IssueToken(Principal{Subject: "u-1"}, 30*time.Minute)
	require.NoError(t, err)

	_, err = tm.ValidateToken(raw)
	assert.ErrorIs(t, err, ErrExpiredCredential)
}

func TestValidateToken_ExpiresExactlyAfterTTL(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tm := newTestManager(t).WithClock(func() time.Time { return base })

	raw, _, err := tm.IssueToken(Principal{Subject: "u-1"}, time.Minute)
	require.NoError(t, err)

	_, err = tm.WithClock(func() time.Time { return base.Add(59 * time.Second) }).ValidateToken(raw)
	require.NoError(t, err)

	_, err = tm.WithClock(func() time.Time { return base.Add(61 * time.Second) }).ValidateToken(raw)
	assert.ErrorIs(t, err, ErrExpiredCredential)
}

func TestValidateToken_TamperedSignature(t *testing.T) {
	tm := newTestManager(t)
	raw, _, err := tm.IssueToken(Principal{Subject: "u-1"}, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	sig[0] ^= 0xFF
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)

	_, err = tm.ValidateToken(strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestValidateToken_TamperedPayload(t *testing.T) {
	tm := newTestManager(t)
	raw, _, err := tm.IssueToken(Principal{Subject: "u-1", Role: domain.RoleTenant}, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	forged, err := NewTokenManager("other-secret", "propertyhub")
	require.NoError(t, err)
	forgedRaw, _, err := forged.IssueToken(Principal{Subject: "u-1", Role: domain.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	forgedParts := strings.Split(forgedRaw, ".")

	// Admin payload with the original signature.
	_, err = tm.ValidateToken(parts[0] + "." + forgedParts[1] + "." + parts[2])
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestValidateToken_RotatedKey(t *testing.T) {
	old := newTestManager(t)
	raw, _, err := old.IssueToken(Principal{Subject: "u-1"}, time.Hour)
	require.NoError(t, err)

	rotated, err := NewTokenManager("rotated-secret-key", "propertyhub")
	require.NoError(t, err)

	_, err = rotated.ValidateToken(raw)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestValidateToken_UnexpectedAlgorithm(t *testing.T) {
	tm := newTestManager(t)

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			Issuer:    "propertyhub",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := hs512.SignedString([]byte("test-secret-key"))
	require.NoError(t, err)
	_, err = tm.ValidateToken(raw)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			Issuer:    "propertyhub",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err = none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tm.ValidateToken(raw)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestValidateToken_Malformed(t *testing.T) {
	tm := newTestManager(t)

	for _, raw := range []string{"", "abc", "a.b.c", "not.a.jwt.at.all"} {
		_, err := tm.ValidateToken(raw)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", raw)
	}
}

func TestValidateToken_MissingSubjectOrExpiry(t *testing.T) {
	tm := newTestManager(t)

	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "propertyhub",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := noSub.SignedString([]byte("test-secret-key"))
	require.NoError(t, err)
	_, err = tm.ValidateToken(raw)
	assert.ErrorIs(t, err, ErrMalformed)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", Issuer: "propertyhub"},
	})
	raw, err = noExp.SignedString([]byte("test-secret-key"))
	require.NoError(t, err)
	_, err = tm.ValidateToken(raw)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestValidateToken_WrongIssuer(t *testing.T) {
	other, err := NewTokenManager("test-secret-key", "someone-else")
	require.NoError(t, err)
	raw, _, err := other.IssueToken(Principal{Subject: "u-1"}, time.Hour)
	require.NoError(t, err)

	_, err = newTestManager(t).ValidateToken(raw)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestIssueFor_RefusesInactivePrincipals(t *testing.T) {
	tm := newTestManager(t)

	for _, status := range []domain.UserStatus{domain.StatusPending, domain.StatusSuspended} {
		_, _, err := tm.IssueFor(&domain.User{ID: "u-1", Status: status, IsActive: true}, time.Hour)
		assert.ErrorIs(t, err, ErrInactivePrincipal, "status %s", status)
	}

	raw, _, err := tm.IssueFor(&domain.User{ID: "u-2", Email: "b@example.com", Role: domain.RoleTenant, Status: domain.StatusActive, IsActive: true}, time.Hour)
	require.NoError(t, err)
	claims, err := tm.ValidateToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "u-2", claims.Subject)
}

func TestIssueToken_RejectsBadInput(t *testing.T) {
	tm := newTestManager(t)

	_, _, err := tm.IssueToken(Principal{}, time.Hour)
	assert.Error(t, err)

	_, _, err = tm.IssueToken(Principal{Subject: "u-1"}, 0)
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	tok, err := ExtractToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	tok, err = ExtractToken("bearer   abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	for _, h := range []string{"", "Bearer", "Basic dXNlcjpwYXNz", "Bearer "} {
		_, err := ExtractToken(h)
		assert.Error(t, err, "header %q", h)
	}
}
