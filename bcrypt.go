package registry

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a salted password hash. Each call
// produces a different digest for the same plaintext.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", goerrors.New("password must not be empty", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}
