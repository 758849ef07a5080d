package service

import (
	"context"
	"errors"
	"time"

	"safedrive/internal/domain"
	"safedrive/internal/repository"
)

// DriverService manages driver profiles and their earnings stats.
type DriverService struct {
	driverRepo repository.DriverRepository
}

// NewDriverService creates a new DriverService.
func NewDriverService(driverRepo repository.DriverRepository) *DriverService {
	return &DriverService{driverRepo: driverRepo}
}

// RegisterDriverInput carries the vehicle details for a new profile.
type RegisterDriverInput struct {
	VehicleMake  string
	VehicleModel string
	VehiclePlate string
}

// RegisterDriver creates a driver profile for the calling user.
func (s *DriverService) RegisterDriver(ctx context.Context, caller Caller, in RegisterDriverInput) (*domain.Driver, error) {
	if caller.Role != domain.RoleDriver {
		return nil, ErrDriverRoleRequired
	}

	existing, err := s.driverRepo.GetByUserID(ctx, caller.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDriverProfileExists
	}

	driver := &domain.Driver{
		ID:           domain.NewID("d"),
		UserID:       caller.UserID,
		VehicleMake:  in.VehicleMake,
		VehicleModel: in.VehicleModel,
		VehiclePlate: in.VehiclePlate,
		CreatedAt:    time.Now(),
	}

	if err := s.driverRepo.Create(ctx, driver); err != nil {
		return nil, err
	}

	return driver, nil
}

// GetStats returns the driver profile (rating, trip count, earnings)
// for the given user.
func (s *DriverService) GetStats(ctx context.Context, userID string) (*domain.Driver, error) {
	return s.driverRepo.GetByUserID(ctx, userID)
}

// GetAll returns every driver profile. Admin use.
func (s *DriverService) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	return s.driverRepo.GetAll(ctx)
}
