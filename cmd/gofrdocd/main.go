package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/rakunlabs/into"
	"github.com/rakunlabs/logi"

	"github.com/parrisma/gofr-doc/internal/authsvc"
	"github.com/parrisma/gofr-doc/internal/authsvc/sqlstore"
	"github.com/parrisma/gofr-doc/internal/config"
	"github.com/parrisma/gofr-doc/internal/convert"
	"github.com/parrisma/gofr-doc/internal/housekeeper"
	"github.com/parrisma/gofr-doc/internal/httpapi"
	"github.com/parrisma/gofr-doc/internal/imagevalidate"
	"github.com/parrisma/gofr-doc/internal/registry"
	"github.com/parrisma/gofr-doc/internal/render"
	"github.com/parrisma/gofr-doc/internal/session"
	"github.com/parrisma/gofr-doc/internal/storage"
	"github.com/parrisma/gofr-doc/internal/toolcatalog"
)

var (
	name    = "gofrdocd"
	version = "v0.0.0"
)

func main() {
	config.Service = name + "/" + version

	into.Init(run,
		into.WithLogger(logi.InitializeLog(logi.WithCaller(false))),
		into.WithMsgf("%s [%s]", name, version),
	)
}

// ///////////////////////////////////////////////////////////////////

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := storage.New(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	tokens, err := newTokenStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}

	auth, err := newAuthService(cfg.Auth, tokens)
	if err != nil {
		return fmt.Errorf("configure auth service: %w", err)
	}

	reg := registry.New(cfg.Storage.TemplatesDir, cfg.Storage.FragmentsDir, cfg.Storage.StylesDir)
	if err := reg.Load(); err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	sessions, err := session.New(filepath.Join(cfg.Storage.DataDir, "sessions"))
	if err != nil {
		return fmt.Errorf("open session engine: %w", err)
	}

	converter := convert.NewRegistry(convert.NewPDFConverter(), convert.NewMarkdownConverter())
	pipeline := render.NewPipeline(reg, sessions, store, converter)

	validationTimeout, err := housekeeper.ParseStaleDuration(cfg.Image.ValidationTimeout)
	if err != nil {
		return fmt.Errorf("parse image.validation_timeout: %w", err)
	}
	images, err := imagevalidate.New(imagevalidate.Config{
		MaxSizeBytes: cfg.Image.MaxSizeMB * 1024 * 1024,
		Timeout:      validationTimeout,
		RequireHTTPS: cfg.Image.RequireHTTPS,
	})
	if err != nil {
		return fmt.Errorf("build image validator: %w", err)
	}

	catalogue := toolcatalog.New(toolcatalog.Deps{
		Registry:  reg,
		Sessions:  sessions,
		Images:    images,
		Pipeline:  pipeline,
		Storage:   store,
		ServiceID: config.Service,
	})
	dispatcher := toolcatalog.NewDispatcher(catalogue, auth)

	server := httpapi.New(cfg.Server, dispatcher, auth, tokens, pipeline, filepath.Join(cfg.Storage.DataDir, "images"))

	keeper := housekeeper.New(store, housekeeper.Config{
		IntervalMinutes:  cfg.Housekeeper.IntervalMinutes,
		LockStaleSeconds: cfg.Housekeeper.LockStaleSeconds,
		MaxStorageMB:     cfg.Housekeeper.MaxStorageMB,
	}, cfg.Storage.DataDir)
	if err := keeper.Start(ctx); err != nil {
		return fmt.Errorf("start housekeeper: %w", err)
	}

	slog.Info("starting document assembly service", "port", cfg.Server.Port)
	return server.Start(ctx)
}

// newTokenStore picks the configured token-registry backend: Postgres and
// SQLite are mutually exclusive external stores, falling back to a local
// JSON file under the storage data directory for single-node deployments.
func newTokenStore(ctx context.Context, cfg config.Storage) (authsvc.TokenStore, error) {
	switch {
	case cfg.TokenStore.Postgres != nil:
		p := cfg.TokenStore.Postgres
		return authsvc.NewPostgresTokenStore(ctx, sqlstore.Config{
			Datasource:      p.Datasource,
			Schema:          p.Schema,
			TablePrefix:     derefString(p.TablePrefix),
			ConnMaxLifetime: p.ConnMaxLifetime,
			MaxIdleConns:    p.MaxIdleConns,
			MaxOpenConns:    p.MaxOpenConns,
			MigrateTable:    p.Migrate.Table,
		})
	case cfg.TokenStore.SQLite != nil:
		s := cfg.TokenStore.SQLite
		return authsvc.NewSQLiteTokenStore(ctx, sqlstore.Config{
			Datasource:   s.Datasource,
			TablePrefix:  derefString(s.TablePrefix),
			MigrateTable: s.Migrate.Table,
		})
	default:
		return authsvc.NewFileTokenStore(cfg.DataDir)
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// newAuthService builds the JWT verifier from a static secret. A production
// deployment backs SecretSource with a consul/vault loader instead; nothing
// in this spec's external-interfaces list names one, so the static fallback
// is the only SecretSource implementation wired today.
func newAuthService(cfg config.Auth, tokens authsvc.TokenStore) (*authsvc.Service, error) {
	ttl, err := housekeeper.ParseStaleDuration(cfg.SecretTTL)
	if err != nil {
		return nil, fmt.Errorf("parse auth.secret_ttl: %w", err)
	}

	source := authsvc.StaticSecretSource{Secret: []byte(cfg.StaticSecret)}
	secrets := authsvc.NewSecretProvider(source, ttl)
	verifier := authsvc.NewJWTVerifier(secrets, cfg.Audience)

	return authsvc.New(verifier, tokens), nil
}
