package main

import (
	"context"
	"database/sql"
	"fmt"

	"talok/internal/adapters/observability"
	"talok/internal/shared"
	"talok/internal/storage/sqlstore"
)

func openStore(ctx context.Context, cfg shared.Config) (*sqlstore.Store, *sql.DB, error) {
	d, err := sqlstore.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, nil, err
	}
	db, err := sqlstore.Open(ctx, d, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", d, err)
	}
	store := sqlstore.New(db, d,
		sqlstore.WithMaxFallbackRetries(cfg.FallbackRetries),
		sqlstore.WithFallbackObserver(observability.ObserveFallback),
	)
	return store, db, nil
}
