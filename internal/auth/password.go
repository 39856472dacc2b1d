package auth

import "golang.org/x/crypto/bcrypt"

// Hasher hashes and checks passwords.
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(plain, hash string) bool
}

// DefaultBcryptCost matches the cost the user records were created with.
const DefaultBcryptCost = 12

// BcryptHasher is the production Hasher.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(plain string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h BcryptHasher) Compare(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
