package timeoff

import (
	"golang.org/x/crypto/bcrypt"
)

// HashSecret hashes a plaintext secret with the given bcrypt cost.
func HashSecret(secret string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CompareSecret verifies a secret against its hash. A mismatch, an empty hash
// or a malformed hash are all ErrUnauthenticated.
func CompareSecret(hashed, plain string) error {
	if hashed == "" {
		return ErrUnauthenticated
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)); err != nil {
		return ErrUnauthenticated
	}
	return nil
}
