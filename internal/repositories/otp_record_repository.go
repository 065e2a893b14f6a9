package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"otplink/internal/models"
	"otplink/internal/store"
)

const otpRecordColumns = `id, otp, source, sender, message, timestamp, forwarded, forwarding_method`

type OTPRecordRepository struct {
	DB *pgxpool.Pool
}

func NewOTPRecordRepository(db *pgxpool.Pool) *OTPRecordRepository {
	return &OTPRecordRepository{DB: db}
}

// Insert adds rec as the newest entry and trims history to store.MaxRecords
// in the same transaction.
func (r *OTPRecordRepository) Insert(ctx context.Context, rec *models.OTPRecord) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO otp_records (` + otpRecordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.Exec(ctx, insert,
		rec.ID,
		rec.OTP,
		rec.Source,
		rec.Sender,
		rec.Message,
		rec.Timestamp,
		rec.Forwarded,
		rec.ForwardingMethod,
	)
	if err != nil {
		return err
	}

	trim := `
		DELETE FROM otp_records
		WHERE seq NOT IN (
			SELECT seq FROM otp_records ORDER BY seq DESC LIMIT $1
		)
	`
	if _, err := tx.Exec(ctx, trim, store.MaxRecords); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// List returns history newest first.
func (r *OTPRecordRepository) List(ctx context.Context) ([]models.OTPRecord, error) {
	query := `SELECT ` + otpRecordColumns + ` FROM otp_records ORDER BY seq DESC LIMIT $1`

	rows, err := r.DB.Query(ctx, query, store.MaxRecords)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.OTPRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (r *OTPRecordRepository) Get(ctx context.Context, id string) (*models.OTPRecord, error) {
	query := `SELECT ` + otpRecordColumns + ` FROM otp_records WHERE id = $1`

	rec, err := scanRecord(r.DB.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return rec, err
}

// UpdateForwarding writes the forwarded flag and method of rec.
func (r *OTPRecordRepository) UpdateForwarding(ctx context.Context, rec *models.OTPRecord) error {
	query := `
		UPDATE otp_records
		SET forwarded = $1, forwarding_method = $2
		WHERE id = $3
	`
	tag, err := r.DB.Exec(ctx, query, rec.Forwarded, rec.ForwardingMethod, rec.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *OTPRecordRepository) DeleteAll(ctx context.Context) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM otp_records`)
	return err
}

func scanRecord(row pgx.Row) (*models.OTPRecord, error) {
	rec := &models.OTPRecord{}
	err := row.Scan(
		&rec.ID,
		&rec.OTP,
		&rec.Source,
		&rec.Sender,
		&rec.Message,
		&rec.Timestamp,
		&rec.Forwarded,
		&rec.ForwardingMethod,
	)
	if err != nil {
		return nil, err
	}
	rec.Timestamp = rec.Timestamp.UTC()
	if !rec.Forwarded {
		rec.ForwardingMethod = nil
	}
	return rec, nil
}
