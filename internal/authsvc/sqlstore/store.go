package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/parrisma/gofr-doc/internal/model"
)

var (
	ConnMaxLifetime  = 15 * time.Minute
	MaxIdleConns     = 3
	MaxOpenConns     = 3
	DefaultTablePrefix = "gofrdoc_"
)

// Store is a goqu-backed token registry usable against either Postgres or
// SQLite, selected by dialect at construction time.
type Store struct {
	db    *sql.DB
	goqu  *goqu.Database
	table exp.IdentifierExpression
}

type Config struct {
	Datasource      string
	Schema          string
	TablePrefix     string
	ConnMaxLifetime *time.Duration
	MaxIdleConns    *int
	MaxOpenConns    *int
	MigrateTable    string
}

func NewPostgres(ctx context.Context, cfg Config) (*Store, error) {
	return open(ctx, "pgx", "postgres", cfg, migratePostgres)
}

func NewSQLite(ctx context.Context, cfg Config) (*Store, error) {
	return open(ctx, "sqlite", "sqlite3", cfg, migrateSQLite)
}

func open(ctx context.Context, driverName, dialect string, cfg Config, migrate func(context.Context, *sql.DB, MigrateConfig) error) (*Store, error) {
	if cfg.Datasource == "" {
		return nil, errors.New("datasource is required")
	}

	tablePrefix := DefaultTablePrefix
	if cfg.TablePrefix != "" {
		tablePrefix = cfg.TablePrefix
	}

	db, err := sql.Open(driverName, cfg.Datasource)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	if cfg.Schema != "" {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", cfg.Schema)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set search_path: %w", err)
		}
	}

	if err := migrate(ctx, db, MigrateConfig{
		Table:  cfg.MigrateTable,
		Values: map[string]string{"TABLE_PREFIX": tablePrefix},
	}); err != nil {
		db.Close()
		return nil, err
	}

	lifetime := ConnMaxLifetime
	if cfg.ConnMaxLifetime != nil {
		lifetime = *cfg.ConnMaxLifetime
	}
	idle := MaxIdleConns
	if cfg.MaxIdleConns != nil {
		idle = *cfg.MaxIdleConns
	}
	open := MaxOpenConns
	if cfg.MaxOpenConns != nil {
		open = *cfg.MaxOpenConns
	}
	db.SetConnMaxLifetime(lifetime)
	db.SetMaxIdleConns(idle)
	db.SetMaxOpenConns(open)

	return &Store{
		db:    db,
		goqu:  goqu.New(dialect, db),
		table: goqu.T(tablePrefix + "tokens"),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type tokenRow struct {
	ID          string
	Name        string
	TokenHash   string
	TokenPrefix string
	Group       string
	IssuedAt    time.Time
	ExpiresAt   sql.NullTime
	Revoked     bool
	LastUsedAt  sql.NullTime
}

func (r tokenRow) toRecord() model.TokenRecord {
	rec := model.TokenRecord{
		ID:          r.ID,
		Name:        r.Name,
		TokenHash:   r.TokenHash,
		TokenPrefix: r.TokenPrefix,
		Group:       r.Group,
		IssuedAt:    r.IssuedAt,
		Revoked:     r.Revoked,
	}
	if r.ExpiresAt.Valid {
		t := r.ExpiresAt.Time
		rec.ExpiresAt = &t
	}
	if r.LastUsedAt.Valid {
		t := r.LastUsedAt.Time
		rec.LastUsedAt = &t
	}
	return rec
}

func (s *Store) Create(ctx context.Context, name, group, tokenHash, tokenPrefix string, expiresAt *time.Time) (model.TokenRecord, error) {
	id := toLowerULID()
	now := time.Now().UTC()

	query, args, err := s.goqu.Insert(s.table).Rows(goqu.Record{
		"id":           id,
		"name":         name,
		"token_hash":   tokenHash,
		"token_prefix": tokenPrefix,
		"grp":          group,
		"issued_at":    now,
		"expires_at":   nullableTime(expiresAt),
		"revoked":      false,
		"last_used_at": nil,
	}).ToSQL()
	if err != nil {
		return model.TokenRecord{}, fmt.Errorf("build create token query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return model.TokenRecord{}, fmt.Errorf("create token: %w", err)
	}

	return model.TokenRecord{
		ID: id, Name: name, TokenHash: tokenHash, TokenPrefix: tokenPrefix,
		Group: group, IssuedAt: now, ExpiresAt: expiresAt,
	}, nil
}

func (s *Store) VerifyHash(ctx context.Context, tokenHash string) (model.TokenRecord, error) {
	query, args, err := s.goqu.From(s.table).
		Select("id", "name", "token_hash", "token_prefix", "grp", "issued_at", "expires_at", "revoked", "last_used_at").
		Where(goqu.I("token_hash").Eq(tokenHash)).
		ToSQL()
	if err != nil {
		return model.TokenRecord{}, fmt.Errorf("build verify token query: %w", err)
	}

	var row tokenRow
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&row.ID, &row.Name, &row.TokenHash, &row.TokenPrefix, &row.Group,
		&row.IssuedAt, &row.ExpiresAt, &row.Revoked, &row.LastUsedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TokenRecord{}, model.ErrAuthFailed("token not recognized")
	}
	if err != nil {
		return model.TokenRecord{}, fmt.Errorf("verify token: %w", err)
	}

	rec := row.toRecord()
	if rec.Revoked {
		return model.TokenRecord{}, model.ErrAuthFailed("token revoked")
	}
	if rec.Expired(time.Now().UTC()) {
		return model.TokenRecord{}, model.ErrAuthFailed("token expired")
	}
	return rec, nil
}

func (s *Store) List(ctx context.Context, group string) ([]model.TokenRecord, error) {
	ds := s.goqu.From(s.table).
		Select("id", "name", "token_hash", "token_prefix", "grp", "issued_at", "expires_at", "revoked", "last_used_at").
		Order(goqu.I("issued_at").Asc())
	if group != "" {
		ds = ds.Where(goqu.I("grp").Eq(group))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list tokens query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var out []model.TokenRecord
	for rows.Next() {
		var row tokenRow
		if err := rows.Scan(
			&row.ID, &row.Name, &row.TokenHash, &row.TokenPrefix, &row.Group,
			&row.IssuedAt, &row.ExpiresAt, &row.Revoked, &row.LastUsedAt,
		); err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		out = append(out, row.toRecord())
	}
	return out, rows.Err()
}

func (s *Store) Revoke(ctx context.Context, id string) error {
	query, args, err := s.goqu.Update(s.table).Set(goqu.Record{"revoked": true}).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build revoke token query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound(model.KindNotFound, fmt.Sprintf("token %q not found", id))
	}
	return nil
}

func (s *Store) Touch(ctx context.Context, id string, at time.Time) error {
	query, args, err := s.goqu.Update(s.table).Set(goqu.Record{"last_used_at": at}).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build touch token query: %w", err)
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func toLowerULID() string {
	return ulidLower(ulid.Make())
}

func ulidLower(u ulid.ULID) string {
	s := u.String()
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c = c - 'A' + 'a'
		}
		out[i] = c
	}
	return string(out)
}
