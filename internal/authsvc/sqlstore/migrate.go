// Package sqlstore is an optional SQL-backed implementation of the token
// registry (authsvc.TokenStore), for deployments that already run a
// shared database rather than relying on the filesystem default.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/rakunlabs/muz"
)

//go:embed migrations/*
var migrationFS embed.FS

type MigrateConfig struct {
	Table  string
	Values map[string]string
}

func migratePostgres(ctx context.Context, db *sql.DB, cfg MigrateConfig) error {
	table := cfg.Table
	if table == "" {
		table = "migrations"
	}

	m := muz.Migrate{Path: "migrations", FS: migrationFS, Extension: ".sql", Values: cfg.Values}
	driver := muz.NewPostgresDriver(db, table, slog.Default())

	if err := m.Migrate(ctx, driver); err != nil {
		return fmt.Errorf("run token store migrations: %w", err)
	}
	return nil
}

func migrateSQLite(ctx context.Context, db *sql.DB, cfg MigrateConfig) error {
	table := cfg.Table
	if table == "" {
		table = "migrations"
	}

	m := muz.Migrate{Path: "migrations", FS: migrationFS, Extension: ".sql", Values: cfg.Values}
	driver := muz.NewSQLiteDriver(db, table, slog.Default())

	if err := m.Migrate(ctx, driver); err != nil {
		return fmt.Errorf("run token store migrations: %w", err)
	}
	return nil
}
