// Package token implements the token service: short-lived signed access
// tokens and long-lived opaque refresh tokens with rotation and reuse
// detection.
package token

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskmaster-pro/taskmaster/internal/logging"
	"github.com/taskmaster-pro/taskmaster/internal/models"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token expired")
	ErrReusedToken      = errors.New("token already rotated")
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
)

// errLostRotation signals that a concurrent refresh revoked the record first.
var errLostRotation = errors.New("lost rotation race")

type AccessClaims struct {
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type Pair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type Service struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Issue signs a new access token and mints a fresh refresh token for the
// user. Only the sha256 of the refresh secret is persisted.
func (s *Service) Issue(ctx context.Context, user *models.User) (*Pair, error) {
	now := time.Now().UTC()
	accessExp := now.Add(s.AccessTTL)
	refreshExp := now.Add(s.RefreshTTL)

	access, err := s.signAccess(user.ID, user.Role, now, accessExp)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := newRefreshSecret()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	record := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: s.HashToken(refresh),
		IssuedAt:  now,
		ExpiresAt: refreshExp,
	}
	if err := s.DB.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "bearer",
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued in one transaction. Presenting an already-revoked token is
// treated as theft and revokes every refresh token the user has.
func (s *Service) Refresh(ctx context.Context, raw string) (*Pair, error) {
	h := s.HashToken(raw)

	var record models.RefreshToken
	err := s.DB.WithContext(ctx).Where("token_hash = ?", h).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	if record.Revoked {
		return nil, s.handleReuse(ctx, record.UserID)
	}
	if time.Now().After(record.ExpiresAt) {
		return nil, ErrExpiredToken
	}

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", record.UserID).Error; err != nil {
		return nil, ErrInvalidToken
	}
	if !user.IsActive {
		return nil, ErrInvalidToken
	}

	now := time.Now().UTC()
	accessExp := now.Add(s.AccessTTL)
	refreshExp := now.Add(s.RefreshTTL)

	access, err := s.signAccess(user.ID, user.Role, now, accessExp)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := newRefreshSecret()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The revoked=false predicate decides the race: of two concurrent
		// refreshes with the same token, only one update affects a row.
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked = ?", record.ID, false).
			Update("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errLostRotation
		}
		return tx.Create(&models.RefreshToken{
			UserID:    user.ID,
			TokenHash: s.HashToken(refresh),
			IssuedAt:  now,
			ExpiresAt: refreshExp,
		}).Error
	})
	if errors.Is(err, errLostRotation) {
		return nil, s.handleReuse(ctx, record.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "bearer",
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Revoke marks the matching record revoked. Unknown or already-revoked
// tokens are not an error.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	return s.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ?", s.HashToken(raw)).
		Update("revoked", true).Error
}

// RevokeAllForUser invalidates every live refresh token for the user,
// forcing re-authentication on all sessions.
func (s *Service) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return s.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
}

// VerifyAccess validates an access token and returns its claims. Pure
// function over the signature and clock, no database access.
func (s *Service) VerifyAccess(raw string) (*AccessClaims, error) {
	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.JWTSecret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil || !tkn.Valid:
		return nil, ErrInvalidToken
	}
	if claims.TokenType != "access" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func (s *Service) signAccess(userID uuid.UUID, role string, now, exp time.Time) (string, error) {
	claims := AccessClaims{
		Role:      role,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.JWTSecret)
}

func (s *Service) handleReuse(ctx context.Context, userID uuid.UUID) error {
	logging.FromContext(ctx).Warn("refresh token reuse detected, revoking all sessions",
		"user_id", userID)
	if err := s.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke sessions after reuse: %w", err)
	}
	return ErrReusedToken
}

// HashToken returns the keyed digest stored in place of the raw secret. A
// leaked refresh_tokens table is useless without the server-side key.
func (s *Service) HashToken(raw string) string {
	mac := hmac.New(sha256.New, s.RefreshSecret)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

func newRefreshSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
