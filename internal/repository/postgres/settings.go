package postgres

import (
	"context"
	"database/sql"
	"errors"

	"safedrive/internal/domain"
	"safedrive/internal/repository"
)

// SettingsRepository is a PostgreSQL implementation of repository.SettingsRepository.
type SettingsRepository struct {
	q Querier
}

// NewSettingsRepository creates a new PostgreSQL settings repository.
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{q: db}
}

// Get retrieves a setting by key. Returns nil if the key is absent.
func (r *SettingsRepository) Get(ctx context.Context, key string) (*domain.Setting, error) {
	query := `SELECT key, value, description, updated_at FROM settings WHERE key = $1`

	var setting domain.Setting
	var description sql.NullString

	err := r.q.QueryRowContext(ctx, query, key).Scan(
		&setting.Key,
		&setting.Value,
		&description,
		&setting.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	setting.Description = description.String

	return &setting, nil
}

// Upsert creates or replaces a setting.
func (r *SettingsRepository) Upsert(ctx context.Context, setting *domain.Setting) error {
	query := `
		INSERT INTO settings (key, value, description, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, description = EXCLUDED.description, updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.ExecContext(ctx, query,
		setting.Key,
		setting.Value,
		nullString(setting.Description),
		setting.UpdatedAt,
	)

	return err
}

// Ensure SettingsRepository implements repository.SettingsRepository.
var _ repository.SettingsRepository = (*SettingsRepository)(nil)
