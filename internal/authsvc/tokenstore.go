package authsvc

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/parrisma/gofr-doc/internal/model"
)

const tokenPrefix = "gfd_"

// TokenStore is the persistence contract for issued API tokens. Multiple
// backends implement it: the filesystem-backed default matching the
// spec's <data_root>/auth/tokens.* layout, and optional SQL-backed
// variants (see sqladapter.go and the sqlstore package) for deployments with a shared
// database.
type TokenStore interface {
	Create(ctx context.Context, name, group string, expiresAt *time.Time) (fullToken string, record model.TokenRecord, err error)
	VerifyHash(ctx context.Context, rawToken string) (model.TokenRecord, error)
	List(ctx context.Context, group string) ([]model.TokenRecord, error)
	Revoke(ctx context.Context, id string) error
	Touch(ctx context.Context, id string, at time.Time) error
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return tokenPrefix + hex.EncodeToString(buf), nil
}

// FileTokenStore persists token records as a single JSON document under
// <data_root>/auth/tokens.json, guarded by an in-process mutex and an
// atomic temp-file-then-rename write, matching the filesystem discipline
// used throughout the rest of the data root.
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

func NewFileTokenStore(dataDir string) (*FileTokenStore, error) {
	dir := filepath.Join(dataDir, "auth")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create auth directory: %w", err)
	}
	return &FileTokenStore{path: filepath.Join(dir, "tokens.json")}, nil
}

type tokenFile struct {
	Records map[string]model.TokenRecord `json:"records"`
}

func (f *FileTokenStore) load() (*tokenFile, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return &tokenFile{Records: map[string]model.TokenRecord{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token store: %w", err)
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return &tokenFile{Records: map[string]model.TokenRecord{}}, nil
	}
	if tf.Records == nil {
		tf.Records = map[string]model.TokenRecord{}
	}
	return &tf, nil
}

func (f *FileTokenStore) save(tf *tokenFile) error {
	dir := filepath.Dir(f.path)
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token store: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tokens-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp token file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename token file: %w", err)
	}
	return nil
}

func (f *FileTokenStore) Create(ctx context.Context, name, group string, expiresAt *time.Time) (string, model.TokenRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	full, err := generateToken()
	if err != nil {
		return "", model.TokenRecord{}, err
	}

	record := model.TokenRecord{
		ID:          strings.ToLower(ulid.Make().String()),
		Name:        name,
		TokenHash:   hashToken(full),
		TokenPrefix: full[:len(tokenPrefix)+6],
		Group:       group,
		IssuedAt:    time.Now().UTC(),
		ExpiresAt:   expiresAt,
	}

	tf, err := f.load()
	if err != nil {
		return "", model.TokenRecord{}, err
	}
	tf.Records[record.ID] = record
	if err := f.save(tf); err != nil {
		return "", model.TokenRecord{}, err
	}

	return full, record, nil
}

func (f *FileTokenStore) VerifyHash(ctx context.Context, rawToken string) (model.TokenRecord, error) {
	tf, err := f.load()
	if err != nil {
		return model.TokenRecord{}, err
	}

	hash := hashToken(rawToken)
	for _, rec := range tf.Records {
		if rec.TokenHash == hash {
			if rec.Revoked {
				return model.TokenRecord{}, model.ErrAuthFailed("token revoked")
			}
			if rec.Expired(time.Now().UTC()) {
				return model.TokenRecord{}, model.ErrAuthFailed("token expired")
			}
			return rec, nil
		}
	}
	return model.TokenRecord{}, model.ErrAuthFailed("token not recognized")
}

func (f *FileTokenStore) List(ctx context.Context, group string) ([]model.TokenRecord, error) {
	tf, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make([]model.TokenRecord, 0, len(tf.Records))
	for _, rec := range tf.Records {
		if group == "" || rec.Group == group {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

func (f *FileTokenStore) Revoke(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tf, err := f.load()
	if err != nil {
		return err
	}
	rec, ok := tf.Records[id]
	if !ok {
		return model.ErrNotFound(model.KindNotFound, fmt.Sprintf("token %q not found", id))
	}
	rec.Revoked = true
	tf.Records[id] = rec
	return f.save(tf)
}

func (f *FileTokenStore) Touch(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tf, err := f.load()
	if err != nil {
		return err
	}
	rec, ok := tf.Records[id]
	if !ok {
		return nil
	}
	t := at
	rec.LastUsedAt = &t
	tf.Records[id] = rec
	return f.save(tf)
}
