package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
)

const systemActor = "scoring-engine"

const upsertConfigurationQuery = `INSERT INTO configurations (key, value, type, description, updated_by, updated_at)
VALUES (:key, :value, :type, :description, :updated_by, :updated_at)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, type = EXCLUDED.type, description = EXCLUDED.description,
              updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`

// ConfigurationRepository persists the small string-keyed values used for
// calculation settings and sync timestamps.
type ConfigurationRepository struct {
	db *sqlx.DB
}

// NewConfigurationRepository constructs the repository.
func NewConfigurationRepository(db *sqlx.DB) *ConfigurationRepository {
	return &ConfigurationRepository{db: db}
}

// ListByKeys returns configurations whose key is in the provided slice.
func (r *ConfigurationRepository) ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	const query = `SELECT key, value, type, description, updated_by, updated_at
FROM configurations WHERE key = ANY($1) ORDER BY key ASC`
	var configs []models.Configuration
	if err := r.db.SelectContext(ctx, &configs, query, pq.Array(keys)); err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	return configs, nil
}

// Get fetches a single configuration by key.
func (r *ConfigurationRepository) Get(ctx context.Context, key string) (*models.Configuration, error) {
	const query = `SELECT key, value, type, description, updated_by, updated_at FROM configurations WHERE key = $1`
	var cfg models.Configuration
	if err := r.db.GetContext(ctx, &cfg, query, key); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetValue returns the raw value for key and whether it exists.
func (r *ConfigurationRepository) GetValue(ctx context.Context, key string) (string, bool, error) {
	cfg, err := r.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get configuration %s: %w", key, err)
	}
	return cfg.Value, true, nil
}

// SetValues writes string values atomically, in key order.
func (r *ConfigurationRepository) SetValues(ctx context.Context, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	cfgs := make([]models.Configuration, 0, len(keys))
	for _, key := range keys {
		cfgs = append(cfgs, models.Configuration{
			Key:       key,
			Value:     values[key],
			Type:      models.ConfigurationTypeString,
			UpdatedBy: strPtr(systemActor),
		})
	}
	return r.BulkUpsert(ctx, cfgs)
}

// Upsert inserts or updates a configuration entry.
func (r *ConfigurationRepository) Upsert(ctx context.Context, cfg *models.Configuration) error {
	cfg.UpdatedAt = time.Now().UTC()
	if _, err := r.db.NamedExecContext(ctx, upsertConfigurationQuery, cfg); err != nil {
		return fmt.Errorf("upsert configuration: %w", err)
	}
	return nil
}

// BulkUpsert performs upserts within a transaction.
func (r *ConfigurationRepository) BulkUpsert(ctx context.Context, cfgs []models.Configuration) error {
	if len(cfgs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk configuration tx: %w", err)
	}
	for i := range cfgs {
		cfgs[i].UpdatedAt = time.Now().UTC()
		if _, err := tx.NamedExecContext(ctx, upsertConfigurationQuery, cfgs[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("bulk upsert configuration: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk configuration tx: %w", err)
	}
	return nil
}

// GetCalculationSettings reads the persisted global settings, falling back to
// defaults when none were stored. Missing keys inside the stored JSON keep
// their default values.
func (r *ConfigurationRepository) GetCalculationSettings(ctx context.Context) (models.CalculationSettings, error) {
	settings := models.DefaultCalculationSettings()
	raw, ok, err := r.GetValue(ctx, models.ConfigKeyCalculationSettings)
	if err != nil {
		return settings, err
	}
	if !ok || raw == "" {
		return settings, nil
	}
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return settings, fmt.Errorf("decode calculation settings: %w", err)
	}
	return settings, nil
}

// SaveCalculationSettings persists the global settings as JSON.
func (r *ConfigurationRepository) SaveCalculationSettings(ctx context.Context, settings models.CalculationSettings, actor string) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode calculation settings: %w", err)
	}
	if actor == "" {
		actor = systemActor
	}
	return r.Upsert(ctx, &models.Configuration{
		Key:       models.ConfigKeyCalculationSettings,
		Value:     string(payload),
		Type:      models.ConfigurationTypeJSON,
		UpdatedBy: strPtr(actor),
	})
}

func strPtr(value string) *string {
	return &value
}
