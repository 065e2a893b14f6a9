package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"otplink/internal/models"
	"otplink/internal/store"
)

var appBucket = []byte("otplink")

// BoltStore keeps the configuration and the OTP history as two JSON values
// in a single bucket of an embedded bbolt file.
type BoltStore struct {
	db *bbolt.DB
}

var _ store.RecordStore = (*BoltStore)(nil)

func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(appBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) LoadConfiguration(ctx context.Context) (*models.Configuration, error) {
	var cfg *models.Configuration
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(appBucket).Get([]byte(store.ConfigKey))
		if data == nil {
			return nil
		}
		cfg = &models.Configuration{}
		return json.Unmarshal(data, cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

func (s *BoltStore) SaveConfiguration(ctx context.Context, cfg *models.Configuration) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(appBucket).Put([]byte(store.ConfigKey), data)
	})
}

func (s *BoltStore) SaveOTPRecord(ctx context.Context, rec *models.OTPRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(appBucket)
		history, err := readRecords(b)
		if err != nil {
			return err
		}
		return writeRecords(b, store.Prepend(history, *rec))
	})
}

func (s *BoltStore) LoadOTPRecords(ctx context.Context) ([]models.OTPRecord, error) {
	var history []models.OTPRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		history, err = readRecords(tx.Bucket(appBucket))
		return err
	})
	if history == nil {
		history = []models.OTPRecord{}
	}
	return history, err
}

func (s *BoltStore) GetOTPRecord(ctx context.Context, id string) (*models.OTPRecord, error) {
	history, err := s.LoadOTPRecords(ctx)
	if err != nil {
		return nil, err
	}
	for i := range history {
		if history[i].ID == id {
			return &history[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *BoltStore) UpdateOTPRecord(ctx context.Context, rec *models.OTPRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(appBucket)
		history, err := readRecords(b)
		if err != nil {
			return err
		}
		for i := range history {
			if history[i].ID == rec.ID {
				history[i] = *rec
				return writeRecords(b, history)
			}
		}
		return store.ErrNotFound
	})
}

func (s *BoltStore) ClearOTPRecords(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(appBucket).Delete([]byte(store.RecordsKey))
	})
}

func (s *BoltStore) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(appBucket) == nil {
			return fmt.Errorf("bucket %s missing", appBucket)
		}
		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func readRecords(b *bbolt.Bucket) ([]models.OTPRecord, error) {
	data := b.Get([]byte(store.RecordsKey))
	if data == nil {
		return nil, nil
	}
	var history []models.OTPRecord
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("decode otp history: %w", err)
	}
	return history, nil
}

func writeRecords(b *bbolt.Bucket, history []models.OTPRecord) error {
	data, err := json.Marshal(history)
	if err != nil {
		return err
	}
	return b.Put([]byte(store.RecordsKey), data)
}
