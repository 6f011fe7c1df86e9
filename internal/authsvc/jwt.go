package authsvc

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/parrisma/gofr-doc/internal/model"
)

// TokenInfo is the verified, authoritative identity carried by a bearer
// token or JWT: the caller's group always wins over any client-supplied
// group argument (I10).
type TokenInfo struct {
	Group     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// claims is the minimal claim set gofr-doc relies on: "grp" for the
// caller's group, plus the registered audience/expiry/issued-at claims.
type claims struct {
	Group string `json:"grp"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies bearer tokens issued as JWTs against the cached
// signing secret and the configured audience.
type JWTVerifier struct {
	secrets  *SecretProvider
	audience string
}

func NewJWTVerifier(secrets *SecretProvider, audience string) *JWTVerifier {
	return &JWTVerifier{secrets: secrets, audience: audience}
}

func (v *JWTVerifier) Verify(ctx context.Context, raw string) (TokenInfo, error) {
	var parsed claims

	token, err := jwt.ParseWithClaims(raw, &parsed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return v.secrets.Secret(ctx)
	}, jwt.WithAudience(v.audience), jwt.WithExpirationRequired())
	if err != nil {
		return TokenInfo{}, model.ErrAuthFailed(err.Error())
	}
	if !token.Valid {
		return TokenInfo{}, model.ErrAuthFailed("token not valid")
	}
	if parsed.Group == "" {
		return TokenInfo{}, model.ErrAuthFailed("token carries no group claim")
	}

	info := TokenInfo{Group: parsed.Group}
	if parsed.ExpiresAt != nil {
		info.ExpiresAt = parsed.ExpiresAt.Time
	}
	if parsed.IssuedAt != nil {
		info.IssuedAt = parsed.IssuedAt.Time
	}
	return info, nil
}
