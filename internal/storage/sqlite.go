//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"snnfault/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveCampaign(ctx context.Context, campaign model.CampaignRecord) error {
	if campaign.ID == "" {
		return errors.New("campaign id is required")
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeCampaign(campaign)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO campaigns (id, created_at_utc, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at_utc = excluded.created_at_utc,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, campaign.ID, campaign.CreatedAtUTC, campaign.SchemaVersion, campaign.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (model.CampaignRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.CampaignRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM campaigns WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CampaignRecord{}, false, nil
		}
		return model.CampaignRecord{}, false, err
	}

	campaign, err := DecodeCampaign(payload)
	if err != nil {
		return model.CampaignRecord{}, false, fmt.Errorf("decode campaign %s: %w", id, err)
	}
	return campaign, true, nil
}

func (s *SQLiteStore) ListCampaigns(ctx context.Context) ([]model.CampaignRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, payload FROM campaigns ORDER BY created_at_utc DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := make([]model.CampaignRecord, 0)
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		campaign, err := DecodeCampaign(payload)
		if err != nil {
			return nil, fmt.Errorf("decode campaign %s: %w", id, err)
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns, rows.Err()
}

func (s *SQLiteStore) SaveTrials(ctx context.Context, campaignID string, trials []model.TrialRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trials WHERE campaign_id = ?`, campaignID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trials (campaign_id, trial_index, degradation, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, trial := range trials {
		payload, err := EncodeTrial(trial)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, campaignID, trial.Index, trial.Degradation, trial.SchemaVersion, trial.CodecVersion, payload); err != nil {
			return fmt.Errorf("insert trial %d: %w", trial.Index, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trial_sets (campaign_id) VALUES (?)
		ON CONFLICT(campaign_id) DO NOTHING
	`, campaignID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetTrials(ctx context.Context, campaignID string) ([]model.TrialRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var marker string
	err = db.QueryRowContext(ctx, `SELECT campaign_id FROM trial_sets WHERE campaign_id = ?`, campaignID).Scan(&marker)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	rows, err := db.QueryContext(ctx, `SELECT trial_index, payload FROM trials WHERE campaign_id = ? ORDER BY trial_index`, campaignID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	trials := make([]model.TrialRecord, 0)
	for rows.Next() {
		var (
			index   int
			payload []byte
		)
		if err := rows.Scan(&index, &payload); err != nil {
			return nil, false, err
		}
		trial, err := DecodeTrial(payload)
		if err != nil {
			return nil, false, fmt.Errorf("decode trial %s/%d: %w", campaignID, index, err)
		}
		trials = append(trials, trial)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return trials, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS campaigns (
			id TEXT PRIMARY KEY,
			created_at_utc TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS trials (
			campaign_id TEXT NOT NULL,
			trial_index INTEGER NOT NULL,
			degradation REAL NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (campaign_id, trial_index)
		);
		CREATE TABLE IF NOT EXISTS trial_sets (
			campaign_id TEXT PRIMARY KEY
		);
	`)
	return err
}
