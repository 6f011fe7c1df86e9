// Package authsvc implements C2: secret caching, JWT verification, the
// token registry, and the bearer-credential resolution policy shared by
// every dispatch path (tool calls and REST).
package authsvc

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/parrisma/gofr-doc/internal/model"
)

// Service resolves a caller's group from whichever bearer credential was
// supplied: a credential shaped like a JWT (three dot-separated parts) is
// verified as a signed JWT, anything else is looked up as an opaque token
// issued by the registry. A credential that fails its path is not retried
// on the other one.
type Service struct {
	jwt    *JWTVerifier
	tokens TokenStore
}

func New(jwt *JWTVerifier, tokens TokenStore) *Service {
	return &Service{jwt: jwt, tokens: tokens}
}

// Resolve implements the credential precedence from spec.md §4.2: an
// explicit auth_token argument wins, then a token argument, then the
// Authorization header. requiresAuth controls whether a missing
// credential is an error (most tools) or simply means "no group scoping"
// (the token-optional set: ping, help, list_templates, ...).
func (s *Service) Resolve(ctx context.Context, args map[string]any, header string, requiresAuth bool) (TokenInfo, error) {
	raw := firstNonEmpty(
		stringArg(args, "auth_token"),
		stringArg(args, "token"),
		bearerFromHeader(header),
	)

	if raw == "" {
		if requiresAuth {
			return TokenInfo{}, model.ErrAuthRequired()
		}
		return TokenInfo{}, nil
	}

	return s.verify(ctx, raw)
}

// ResolveHTTP is the net/http convenience form of Resolve.
func (s *Service) ResolveHTTP(ctx context.Context, r *http.Request, requiresAuth bool) (TokenInfo, error) {
	return s.Resolve(ctx, nil, r.Header.Get("Authorization"), requiresAuth)
}

func (s *Service) verify(ctx context.Context, raw string) (TokenInfo, error) {
	if looksLikeJWT(raw) {
		return s.jwt.Verify(ctx, raw)
	}

	rec, err := s.tokens.VerifyHash(ctx, raw)
	if err != nil {
		return TokenInfo{}, err
	}

	go func() {
		if err := s.tokens.Touch(context.Background(), rec.ID, time.Now().UTC()); err != nil {
			slog.Warn("update token last_used_at failed", "token_id", rec.ID, "error", err)
		}
	}()

	return TokenInfo{Group: rec.Group, IssuedAt: rec.IssuedAt}, nil
}

func looksLikeJWT(raw string) bool {
	return strings.Count(raw, ".") == 2
}

func bearerFromHeader(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
