// Package auth mints and verifies session tokens, resolves roles by set
// membership, validates site API keys, and applies Turnstile enforcement.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/cache"
)

// Claims is the token payload: {sub=user_id, site_id, session_id, iat, exp}.
type Claims struct {
	SiteID    string `json:"site_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Service mints and verifies tokens against a shared secret and checks
// session existence in Redis so revocation takes effect immediately.
type Service struct {
	rdb    *redis.Client
	secret []byte
	expiry time.Duration
}

func New(rdb *redis.Client, secret string, expiry time.Duration) *Service {
	return &Service{rdb: rdb, secret: []byte(secret), expiry: expiry}
}

// Mint creates a session record in Redis and returns a signed token for it.
func (s *Service) Mint(ctx context.Context, userID, siteID uuid.UUID, ip, userAgent string) (string, error) {
	sessionID := uuid.NewString()
	now := time.Now()

	if err := s.rdb.HSet(ctx, cache.SessionKey(sessionID), map[string]any{
		"user_id":    userID.String(),
		"created_at": now.Unix(),
		"ip":         ip,
		"user_agent": userAgent,
	}).Err(); err != nil {
		return "", apperr.Internal(err)
	}
	if err := s.rdb.Expire(ctx, cache.SessionKey(sessionID), s.expiry).Err(); err != nil {
		return "", apperr.Internal(err)
	}

	claims := Claims{
		SiteID:    siteID.String(),
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apperr.Internal(err)
	}
	return signed, nil
}

// Principal is the verified identity carried by a request.
type Principal struct {
	UserID    uuid.UUID
	SiteID    uuid.UUID
	SessionID string
}

// Verify parses and validates a token, then confirms its session still
// exists in Redis. A missing session means the token was revoked.
func (s *Service) Verify(ctx context.Context, tokenString string) (Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, apperr.Unauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return Principal{}, apperr.Unauthorized("invalid token claims")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, apperr.Unauthorized("invalid token subject")
	}
	siteID, err := uuid.Parse(claims.SiteID)
	if err != nil {
		return Principal{}, apperr.Unauthorized("invalid token site")
	}

	exists, err := s.rdb.Exists(ctx, cache.SessionKey(claims.SessionID)).Result()
	if err != nil {
		return Principal{}, apperr.Internal(err)
	}
	if exists == 0 {
		return Principal{}, apperr.Unauthorized("session revoked")
	}

	return Principal{UserID: userID, SiteID: siteID, SessionID: claims.SessionID}, nil
}

// Revoke deletes a session, invalidating every token minted for it.
func (s *Service) Revoke(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, cache.SessionKey(sessionID)).Err(); err != nil {
		return apperr.Internal(err)
	}
	return nil
}
