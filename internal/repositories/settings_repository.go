package repositories

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"otplink/internal/models"
	"otplink/internal/store"
)

// SettingsRepository stores JSON documents in app_settings by key.
type SettingsRepository struct {
	DB *pgxpool.Pool
}

func NewSettingsRepository(db *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{DB: db}
}

// GetConfiguration returns nil, nil when no configuration has been saved.
func (r *SettingsRepository) GetConfiguration(ctx context.Context) (*models.Configuration, error) {
	query := `SELECT value FROM app_settings WHERE key = $1`

	var raw []byte
	err := r.DB.QueryRow(ctx, query, store.ConfigKey).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cfg := &models.Configuration{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *SettingsRepository) SaveConfiguration(ctx context.Context, cfg *models.Configuration) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO app_settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	_, err = r.DB.Exec(ctx, query, store.ConfigKey, raw)
	return err
}
