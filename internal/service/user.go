package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"safedrive/internal/domain"
	"safedrive/internal/repository"
)

// UserService manages the user directory. Authentication itself lives
// outside this module; handlers receive an already-verified principal.
type UserService struct {
	userRepo repository.UserRepository
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// RegisterUserInput carries the fields for a new account.
type RegisterUserInput struct {
	Email string
	Name  string
	Phone string
	Role  domain.Role
}

// RegisterUser creates a new user account.
func (s *UserService) RegisterUser(ctx context.Context, in RegisterUserInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	switch in.Role {
	case domain.RolePassenger, domain.RoleDriver, domain.RoleAdmin:
	default:
		return nil, ErrInvalidRole
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	user := &domain.User{
		ID:        domain.NewID("u"),
		Email:     email,
		Name:      strings.TrimSpace(in.Name),
		Phone:     strings.TrimSpace(in.Phone),
		Role:      in.Role,
		CreatedAt: time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// GetUser returns a user by ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}
