package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/taskhive/taskhive-be/internal/models"
	"github.com/taskhive/taskhive-be/internal/storage"
)

// ErrInvalidCredentials is the single failure for every login problem.
// An unknown email and a wrong password are indistinguishable to the caller,
// which keeps account enumeration off the table.
var ErrInvalidCredentials = errors.New("unable to login")

// FindByCredentials resolves an email/password pair to a user.
func FindByCredentials(ctx context.Context, store storage.UserStore, email, password string) (models.User, error) {
	user, err := store.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}
