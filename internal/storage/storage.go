// Package storage selects the table backend the pipeline reads and writes.
package storage

import (
	"context"
	"fmt"

	"github.com/donsko1/DNS-case/internal/contracts"
	"github.com/donsko1/DNS-case/internal/pipelineconfig"
	"github.com/donsko1/DNS-case/internal/storage/csvstore"
	"github.com/donsko1/DNS-case/internal/storage/pgstore"
	"github.com/donsko1/DNS-case/pkg/config"
	"github.com/donsko1/DNS-case/pkg/database"
	"github.com/donsko1/DNS-case/pkg/logger"
)

// Open returns the store for cfg.StorageBackend. The postgres store owns its
// pool and creates the schema on open.
func Open(ctx context.Context, cfg *config.Config, rules *pipelineconfig.Config, log *logger.Logger) (contracts.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendCSV:
		log.WithField("dir", cfg.DataDir).Info("Using CSV storage")
		return csvstore.New(cfg.DataDir, rules.Tables, log), nil

	case config.BackendPostgres:
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := pgstore.NewOwned(db, rules.Tables, log)
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		log.WithField("schema", cfg.Database.Schema).Info("Using PostgreSQL storage")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
