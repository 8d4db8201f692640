package testsupport

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/internal/security/auth"
)

// FastHasher hashes at bcrypt's minimum cost.
var FastHasher = auth.NewPasswordHasher(4)

// SeedUser stores an account with the given password and returns it.
func SeedUser(t *testing.T, store *MemoryStore, email, password string, role domain.Role, status domain.UserStatus) *domain.User {
	t.Helper()

	hash, err := FastHasher.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{
		Email:          email,
		HashedPassword: hash,
		Role:           role,
		Status:         status,
		IsActive:       true,
	}
	if err := store.Users(nil).Create(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

// AssertStatusCode fails the test when resp has an unexpected status.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType fails the test when resp has an unexpected Content-Type.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	if ct := resp.Header.Get("Content-Type"); ct != expected {
		t.Errorf("Expected Content-Type %s, got %s", expected, ct)
	}
}

// DecodeJSON decodes resp's body into a value of type T.
func DecodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return v
}
