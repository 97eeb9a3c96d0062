package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// DataSource is the Postgres-backed data source consumed by the batch
// processor and the sync engine.
type DataSource struct {
	*StudentRepository
	*ExtraFieldRepository
	*ExtraScoreRepository
	*SyncSourceRepository
	*ConfigurationRepository
}

// NewDataSource wires every repository on the same connection pool.
func NewDataSource(db *sqlx.DB) *DataSource {
	return &DataSource{
		StudentRepository:       NewStudentRepository(db),
		ExtraFieldRepository:    NewExtraFieldRepository(db),
		ExtraScoreRepository:    NewExtraScoreRepository(db),
		SyncSourceRepository:    NewSyncSourceRepository(db),
		ConfigurationRepository: NewConfigurationRepository(db),
	}
}

// GetValues returns the stored values for keys; missing keys are omitted.
func (d *DataSource) GetValues(ctx context.Context, keys []string) (map[string]string, error) {
	configs, err := d.ListByKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get values: %w", err)
	}
	values := make(map[string]string, len(configs))
	for _, cfg := range configs {
		values[cfg.Key] = cfg.Value
	}
	return values, nil
}
