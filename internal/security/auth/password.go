package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt only looks at the first 72 bytes of its input.
const bcryptMaxInput = 72

// PasswordHasher hashes passwords with bcrypt at a fixed cost.
type PasswordHasher struct {
	cost int

	dummyOnce sync.Once
	dummy     string
}

// NewPasswordHasher returns a hasher using cost, clamped to bcrypt's range.
// A zero cost selects bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost}
}

// HashPassword returns a salted bcrypt hash. Two calls with the same input
// produce different hashes. Inputs of any length are accepted; see prepare.
func (h *PasswordHasher) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword(prepare(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares password against a stored hash in constant time.
// A malformed or empty hash never matches.
func VerifyPassword(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), prepare(password)) == nil
}

// DummyHash returns a valid hash of a random value at the hasher's cost. Login
// verifies against it when the account does not exist so both paths do the
// same amount of work.
func (h *PasswordHasher) DummyHash() string {
	h.dummyOnce.Do(func() {
		b, err := bcrypt.GenerateFromPassword([]byte("propertyhub-dummy-password"), h.cost)
		if err == nil {
			h.dummy = string(b)
		}
	})
	return h.dummy
}

// prepare reduces inputs longer than bcrypt's limit to a SHA-256 digest so
// two long passwords sharing a 72-byte prefix do not collide.
func prepare(password string) []byte {
	if len(password) <= bcryptMaxInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
