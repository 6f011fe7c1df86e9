package authsvc

import (
	"context"
	"time"

	"github.com/parrisma/gofr-doc/internal/authsvc/sqlstore"
	"github.com/parrisma/gofr-doc/internal/model"
)

// sqlBacked implements TokenStore over a sqlstore.Store, handling the raw
// token generation/hashing the SQL layer itself stays agnostic to.
type sqlBacked struct {
	store *sqlstore.Store
}

// NewPostgresTokenStore wires the token registry to a Postgres database.
func NewPostgresTokenStore(ctx context.Context, cfg sqlstore.Config) (TokenStore, error) {
	s, err := sqlstore.NewPostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &sqlBacked{store: s}, nil
}

// NewSQLiteTokenStore wires the token registry to a SQLite database.
func NewSQLiteTokenStore(ctx context.Context, cfg sqlstore.Config) (TokenStore, error) {
	s, err := sqlstore.NewSQLite(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &sqlBacked{store: s}, nil
}

func (b *sqlBacked) Create(ctx context.Context, name, group string, expiresAt *time.Time) (string, model.TokenRecord, error) {
	full, err := generateToken()
	if err != nil {
		return "", model.TokenRecord{}, err
	}
	rec, err := b.store.Create(ctx, name, group, hashToken(full), full[:len(tokenPrefix)+6], expiresAt)
	if err != nil {
		return "", model.TokenRecord{}, err
	}
	return full, rec, nil
}

func (b *sqlBacked) VerifyHash(ctx context.Context, rawToken string) (model.TokenRecord, error) {
	return b.store.VerifyHash(ctx, hashToken(rawToken))
}

func (b *sqlBacked) List(ctx context.Context, group string) ([]model.TokenRecord, error) {
	return b.store.List(ctx, group)
}

func (b *sqlBacked) Revoke(ctx context.Context, id string) error {
	return b.store.Revoke(ctx, id)
}

func (b *sqlBacked) Touch(ctx context.Context, id string, at time.Time) error {
	return b.store.Touch(ctx, id, at)
}
