package bootstrap

import (
	"context"
	"fmt"

	"github.com/pedalsync/linkgate/internal/config"
	"github.com/pedalsync/linkgate/internal/store"

	"github.com/rs/zerolog"
)

// initializeDatabase creates and migrates the relational store
func initializeDatabase(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*store.Store, error) {
	// Create timeout context for this specific operation
	ctx, cancel := context.WithTimeout(ctx, cfg.DBInitTimeout)
	defer cancel()

	db, err := store.New(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	log.Info().Str("driver", cfg.DatabaseDriver).Msg("database initialized")
	return db, nil
}
