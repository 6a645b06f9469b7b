package users

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidContact = errors.New("user id and a valid email are required")

var validate = validator.New()

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// SaveContact records the contact details used for completion notices.
func (s *Service) SaveContact(ctx context.Context, user User) error {
	if s == nil || s.Repo == nil {
		return errors.New("users service not configured")
	}
	user.ID = strings.TrimSpace(user.ID)
	user.Email = strings.TrimSpace(user.Email)
	user.FullName = strings.TrimSpace(user.FullName)
	if user.ID == "" || user.Email == "" {
		return ErrInvalidContact
	}
	if err := validate.Var(user.Email, "email,max=320"); err != nil {
		return ErrInvalidContact
	}
	return s.Repo.Upsert(ctx, user)
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}
