package secrets

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the work factor used for access codes and invite tokens.
const DefaultCost = 10

// Verifier hashes and checks low-entropy shared secrets.
type Verifier interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// Bcrypt is a Verifier with a fixed work factor.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a Bcrypt verifier. Costs outside bcrypt's range fall
// back to DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Cost() int { return b.cost }

// MaxSecretBytes is the longest input bcrypt accepts.
const MaxSecretBytes = 72

// Hash returns a salted bcrypt hash of plaintext. Inputs longer than
// MaxSecretBytes are rejected with bcrypt.ErrPasswordTooLong.
func (b *Bcrypt) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. A malformed hash is a mismatch.
func (b *Bcrypt) Verify(plaintext, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
