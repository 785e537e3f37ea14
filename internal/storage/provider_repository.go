package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"model_settings/internal/logging"
	"model_settings/internal/models"
)

// ProviderRecord is a providers row as stored; APIKey and EncryptedConfig are ciphertext.
type ProviderRecord struct {
	ID              int64     `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	ProviderName    string    `db:"provider_name" json:"provider_name"`
	APIKey          string    `db:"api_key" json:"api_key"`
	EndpointURL     string    `db:"endpoint_url" json:"endpoint_url"`
	IsValid         bool      `db:"is_valid" json:"is_valid"`
	Prefer          bool      `db:"prefer" json:"prefer"`
	ModelType       string    `db:"model_type" json:"model_type"`
	EncryptedConfig string    `db:"encrypted_config" json:"encrypted_config"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ProviderListCache caches a user's provider records. Records stay encrypted in the cache.
type ProviderListCache interface {
	Get(ctx context.Context, userID string) ([]ProviderRecord, bool, error)
	Set(ctx context.Context, userID string, records []ProviderRecord) error
	Invalidate(ctx context.Context, userID string) error
}

const providerColumns = `id, user_id, provider_name, api_key, endpoint_url, is_valid, prefer,
		       model_type, encrypted_config, created_at, updated_at`

// ProviderRepository handles provider database operations scoped to one user
type ProviderRepository struct {
	db    *DB
	enc   *Encryption
	cache ProviderListCache
}

// NewProviderRepository creates a new provider repository. cache may be nil.
func NewProviderRepository(db *DB, enc *Encryption, cache ProviderListCache) *ProviderRepository {
	return &ProviderRepository{db: db, enc: enc, cache: cache}
}

// List returns the user's providers ordered by id
func (r *ProviderRepository) List(ctx context.Context, userID string) ([]*models.Provider, error) {
	records, err := r.listRecords(ctx, userID)
	if err != nil {
		return nil, err
	}

	providers := make([]*models.Provider, 0, len(records))
	for i := range records {
		p, err := r.decrypt(&records[i])
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func (r *ProviderRepository) listRecords(ctx context.Context, userID string) ([]ProviderRecord, error) {
	if r.cache != nil {
		records, ok, err := r.cache.Get(ctx, userID)
		if err != nil {
			logging.Warningf("provider list cache read failed for %s: %v", userID, err)
		} else if ok {
			return records, nil
		}
	}

	query := `SELECT ` + providerColumns + ` FROM providers WHERE user_id = $1 ORDER BY id`
	records := []ProviderRecord{}
	if err := r.db.conn.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, userID, records); err != nil {
			logging.Warningf("provider list cache write failed for %s: %v", userID, err)
		}
	}
	return records, nil
}

// Get retrieves one of the user's providers
func (r *ProviderRepository) Get(ctx context.Context, userID string, id int64) (*models.Provider, error) {
	var record ProviderRecord
	query := `SELECT ` + providerColumns + ` FROM providers WHERE id = $1 AND user_id = $2`

	if err := r.db.conn.GetContext(ctx, &record, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return r.decrypt(&record)
}

// Create inserts a provider for the user
func (r *ProviderRepository) Create(ctx context.Context, userID string, in models.ProviderInput) (*models.Provider, error) {
	apiKey, extra, err := r.encryptInput(in)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO providers (user_id, provider_name, api_key, endpoint_url, is_valid, model_type, encrypted_config)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + providerColumns

	var record ProviderRecord
	err = r.db.conn.GetContext(ctx, &record, query,
		userID, in.ProviderName, apiKey, in.EndpointURL, in.IsValid, in.ModelType, extra)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrProviderExists
		}
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	r.invalidate(ctx, userID)
	return r.decrypt(&record)
}

// Update replaces the mutable fields of one of the user's providers. prefer is untouched.
func (r *ProviderRepository) Update(ctx context.Context, userID string, id int64, in models.ProviderInput) (*models.Provider, error) {
	apiKey, extra, err := r.encryptInput(in)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE providers
		SET provider_name = $3, api_key = $4, endpoint_url = $5, is_valid = $6,
		    model_type = $7, encrypted_config = $8, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + providerColumns

	var record ProviderRecord
	err = r.db.conn.GetContext(ctx, &record, query,
		id, userID, in.ProviderName, apiKey, in.EndpointURL, in.IsValid, in.ModelType, extra)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrProviderExists
		}
		return nil, fmt.Errorf("failed to update provider: %w", err)
	}

	r.invalidate(ctx, userID)
	return r.decrypt(&record)
}

// Delete removes one of the user's providers
func (r *ProviderRepository) Delete(ctx context.Context, userID string, id int64) error {
	result, err := r.db.conn.ExecContext(ctx, `DELETE FROM providers WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete provider: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrProviderNotFound
	}

	r.invalidate(ctx, userID)
	return nil
}

// SetPreferred marks exactly one of the user's providers preferred in a single transaction
func (r *ProviderRepository) SetPreferred(ctx context.Context, userID string, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.GetContext(ctx, &exists, `SELECT 1 FROM providers WHERE id = $1 AND user_id = $2 FOR UPDATE`, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProviderNotFound
		}
		return fmt.Errorf("failed to lock provider: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE providers
		SET prefer = (id = $1), updated_at = NOW()
		WHERE user_id = $2 AND (prefer OR id = $1)
	`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update preference: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit preference: %w", err)
	}

	r.invalidate(ctx, userID)
	return nil
}

func (r *ProviderRepository) invalidate(ctx context.Context, userID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, userID); err != nil {
		logging.Warningf("provider list cache invalidation failed for %s: %v", userID, err)
	}
}

func (r *ProviderRepository) encryptInput(in models.ProviderInput) (string, string, error) {
	apiKey, err := r.enc.EncryptString(in.APIKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to encrypt api key: %w", err)
	}
	extra, err := r.enc.EncryptJSON(in.EncryptedConfig.Map())
	if err != nil {
		return "", "", fmt.Errorf("failed to encrypt config: %w", err)
	}
	return apiKey, extra, nil
}

func (r *ProviderRepository) decrypt(record *ProviderRecord) (*models.Provider, error) {
	apiKey, err := r.enc.DecryptString(record.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt api key of provider %d: %w", record.ID, err)
	}
	extra, err := r.enc.DecryptJSON(record.EncryptedConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt config of provider %d: %w", record.ID, err)
	}
	config, err := models.ExtraConfigFromMap(extra)
	if err != nil {
		return nil, fmt.Errorf("failed to read config of provider %d: %w", record.ID, err)
	}

	return &models.Provider{
		ID:              record.ID,
		UserID:          record.UserID,
		ProviderName:    record.ProviderName,
		APIKey:          apiKey,
		EndpointURL:     record.EndpointURL,
		IsValid:         record.IsValid,
		Prefer:          record.Prefer,
		ModelType:       record.ModelType,
		EncryptedConfig: config,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}, nil
}

// isUniqueViolation reports a Postgres unique_violation (SQLSTATE 23505)
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
