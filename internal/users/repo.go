package users

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no contact is stored for a user id.
var ErrNotFound = errors.New("user not found")

// Repo stores owner contact details. The pipeline reads them at delivery.
type Repo interface {
	Upsert(ctx context.Context, user User) error
	GetByID(ctx context.Context, userID string) (User, error)
}
