package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"otplink/internal/models"
	"otplink/internal/store"
)

// PostgresStore implements store.RecordStore on top of the settings and
// record repositories.
type PostgresStore struct {
	pool     *pgxpool.Pool
	settings *SettingsRepository
	records  *OTPRecordRepository
}

var _ store.RecordStore = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool:     pool,
		settings: NewSettingsRepository(pool),
		records:  NewOTPRecordRepository(pool),
	}
}

func (s *PostgresStore) LoadConfiguration(ctx context.Context) (*models.Configuration, error) {
	return s.settings.GetConfiguration(ctx)
}

func (s *PostgresStore) SaveConfiguration(ctx context.Context, cfg *models.Configuration) error {
	return s.settings.SaveConfiguration(ctx, cfg)
}

func (s *PostgresStore) SaveOTPRecord(ctx context.Context, rec *models.OTPRecord) error {
	return s.records.Insert(ctx, rec)
}

func (s *PostgresStore) LoadOTPRecords(ctx context.Context) ([]models.OTPRecord, error) {
	return s.records.List(ctx)
}

func (s *PostgresStore) GetOTPRecord(ctx context.Context, id string) (*models.OTPRecord, error) {
	return s.records.Get(ctx, id)
}

func (s *PostgresStore) UpdateOTPRecord(ctx context.Context, rec *models.OTPRecord) error {
	return s.records.UpdateForwarding(ctx, rec)
}

func (s *PostgresStore) ClearOTPRecords(ctx context.Context) error {
	return s.records.DeleteAll(ctx)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
