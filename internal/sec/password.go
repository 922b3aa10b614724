package sec

import "golang.org/x/crypto/bcrypt"

// ComparePassword returns an error if the provided password does not resolve
// to the given hash.
func ComparePassword(password, hash []byte) error {
	return bcrypt.CompareHashAndPassword(hash, password)
}

// HashPassword generates the hash for a given password. It errors if the
// password is longer than 72 bytes.
func HashPassword(password []byte) ([]byte, error) {
	return bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
}
