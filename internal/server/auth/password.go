package auth

import "golang.org/x/crypto/bcrypt"

// DefaultBcryptCost matches the work factor the product has always used.
const DefaultBcryptCost = 10

// PasswordHasher wraps bcrypt with a fixed cost. Each call salts
// independently, so hashing the same plaintext twice yields different hashes.
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash derives a salted one-way hash of plaintext.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plaintext matches hash. A mismatch or a malformed
// hash returns false, never an error.
func (h *PasswordHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
