package memory

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var errMismatchedPassword = errors.New("password does not match")

func hashPassword(password string, cost int) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), cost)
}

// comparePasswordAndHash validates the cleartext password against hash
func comparePasswordAndHash(password string, hash []byte) error {
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return errMismatchedPassword
		}
		return err
	}
	return nil
}
