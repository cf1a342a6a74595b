// internal/directory/directory.go
package directory

import (
	"context"
	"errors"

	"intake-engine/internal/models"
)

// ErrUserNotFound means the directory has no record for the email.
var ErrUserNotFound = errors.New("USER_NOT_FOUND")

// Directory is the user-lookup collaborator.
type Directory interface {
	GetAllUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, email string) (*models.User, error)
}
