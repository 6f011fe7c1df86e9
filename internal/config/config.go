// Package config loads gofr-doc's runtime configuration via chu, with
// environment overrides under the GOFR_DOC_ prefix and optional external
// secret-store backing for auth material.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/rakunlabs/chu/loader/external/loaderconsul"
	_ "github.com/rakunlabs/chu/loader/external/loadervault"
	"github.com/rakunlabs/chu/loader/loaderenv"
	"github.com/rakunlabs/logi"

	"github.com/rakunlabs/chu"
	"github.com/rakunlabs/tell"
)

var Service = ""

type Config struct {
	LogLevel string `cfg:"log_level,no_prefix" default:"info"`

	Server      Server      `cfg:"server"`
	Storage     Storage     `cfg:"storage"`
	Auth        Auth        `cfg:"auth"`
	Housekeeper Housekeeper `cfg:"housekeeper"`
	Image       Image       `cfg:"image"`
	Telemetry   tell.Config `cfg:"telemetry,noprefix"`
}

type Server struct {
	Port string `cfg:"port" default:"8080"`
	Host string `cfg:"host"`

	// AdminToken protects token-registry administration endpoints.
	AdminToken string `cfg:"admin_token" log:"-"`
}

// Storage describes the filesystem roots the spec's external-interfaces
// section names, plus the optional SQL backend for the token registry.
type Storage struct {
	DataDir      string `cfg:"data_dir" default:"./data"`
	TemplatesDir string `cfg:"templates_dir" default:"./data/templates"`
	StylesDir    string `cfg:"styles_dir" default:"./data/styles"`
	FragmentsDir string `cfg:"fragments_dir" default:"./data/fragments"`

	MaxStorageMB int64 `cfg:"max_storage_mb" default:"1024"`

	TokenStore TokenStore `cfg:"token_store"`
}

type TokenStore struct {
	Postgres *StorePostgres `cfg:"postgres"`
	SQLite   *StoreSQLite   `cfg:"sqlite"`
}

type StorePostgres struct {
	TablePrefix     *string        `cfg:"table_prefix"`
	Datasource      string         `cfg:"datasource" log:"-"`
	Schema          string         `cfg:"schema"`
	ConnMaxLifetime *time.Duration `cfg:"conn_max_lifetime"`
	MaxIdleConns    *int           `cfg:"max_idle_conns"`
	MaxOpenConns    *int           `cfg:"max_open_conns"`
	Migrate         Migrate        `cfg:"migrate"`
}

type StoreSQLite struct {
	TablePrefix *string `cfg:"table_prefix"`
	Datasource  string  `cfg:"datasource"`
	Migrate     Migrate `cfg:"migrate"`
}

type Migrate struct {
	Datasource string            `cfg:"datasource" log:"-"`
	Schema     string            `cfg:"schema"`
	Table      string            `cfg:"table"`
	Values     map[string]string `cfg:"values"`
}

// Auth configures JWT verification and the secret-provider refresh cycle.
type Auth struct {
	// Audience is the expected JWT "aud" claim.
	Audience string `cfg:"audience" default:"gofr-api"`

	// SecretTTL is how long the signing secret is cached before a refresh
	// read against the external secret store.
	SecretTTL string `cfg:"secret_ttl" default:"5m"`

	// StaticSecret is a fallback HMAC secret used when no external
	// secret-store loader resolves one (development/testing only).
	StaticSecret string `cfg:"static_secret" log:"-"`
}

type Housekeeper struct {
	IntervalMinutes  int   `cfg:"interval_minutes" default:"60"`
	LockStaleSeconds int   `cfg:"lock_stale_seconds" default:"3600"`
	MaxStorageMB     int64 `cfg:"max_storage_mb" default:"1024"`
}

type Image struct {
	MaxSizeMB         int64  `cfg:"max_size_mb" default:"10"`
	ValidationTimeout string `cfg:"validation_timeout" default:"10s"`
	RequireHTTPS      bool   `cfg:"require_https" default:"true"`
}

func Load(ctx context.Context, path string) (*Config, error) {
	var cfg Config
	if err := chu.Load(ctx, path, &cfg, chu.WithLoaderOption(loaderenv.New(loaderenv.WithPrefix("GOFR_DOC_")))); err != nil {
		return nil, err
	}

	if err := logi.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("set log level %s: %w", cfg.LogLevel, err)
	}

	slog.Info("loaded configuration", "config", chu.MarshalMap(cfg))

	return &cfg, nil
}
