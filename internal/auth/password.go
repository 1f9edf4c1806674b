package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword derives a bcrypt hash for storage in the account record.
// Cost comes from configuration so tests can run at bcrypt.MinCost while
// production uses a hardened value.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword checks a login attempt against the stored hash.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
