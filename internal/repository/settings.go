package repository

import (
	"context"

	"safedrive/internal/domain"
)

// SettingsRepository defines the persistence operations for settings.
type SettingsRepository interface {
	// Get retrieves a setting by key. Returns nil if the key is absent.
	Get(ctx context.Context, key string) (*domain.Setting, error)

	// Upsert creates or replaces a setting.
	Upsert(ctx context.Context, setting *domain.Setting) error
}
