package authsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"
)

// SecretSource resolves the current signing secret from an external
// store (consul/vault, via the config loader chain) or a static fallback.
type SecretSource interface {
	ReadSecret(ctx context.Context) ([]byte, error)
}

// StaticSecretSource always returns the same configured secret.
type StaticSecretSource struct {
	Secret []byte
}

func (s StaticSecretSource) ReadSecret(ctx context.Context) ([]byte, error) {
	return s.Secret, nil
}

// SecretProvider caches a signing secret for ttl before re-reading it from
// source, and logs (at WARN) whenever the secret's fingerprint changes
// between reads so a rotation is visible in the logs without leaking the
// secret itself.
type SecretProvider struct {
	source SecretSource
	ttl    time.Duration

	mu          sync.Mutex
	cached      []byte
	fetchedAt   time.Time
	fingerprint string
}

func NewSecretProvider(source SecretSource, ttl time.Duration) *SecretProvider {
	return &SecretProvider{source: source, ttl: ttl}
}

func fingerprintOf(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:8])
}

// Secret returns the cached secret, refreshing it from source once ttl has
// elapsed since the last successful read.
func (p *SecretProvider) Secret(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && time.Since(p.fetchedAt) < p.ttl {
		return p.cached, nil
	}

	secret, err := p.source.ReadSecret(ctx)
	if err != nil {
		if p.cached != nil {
			slog.Warn("secret refresh failed, serving stale cached secret", "error", err)
			return p.cached, nil
		}
		return nil, err
	}

	fp := fingerprintOf(secret)
	if p.fingerprint != "" && fp != p.fingerprint {
		slog.Warn("auth signing secret fingerprint changed", "previous", p.fingerprint, "current", fp)
	}

	p.cached = secret
	p.fingerprint = fp
	p.fetchedAt = time.Now()
	return p.cached, nil
}

// Invalidate forces the next Secret call to re-read from source.
func (p *SecretProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchedAt = time.Time{}
}
