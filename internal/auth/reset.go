package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"go.uber.org/zap"

	"tallyhq.org/internal/ids"
)

const (
	resetTokenTTL   = 24 * time.Hour
	resetTokenBytes = 32 // 256 bits of entropy
)

// RequestReset generates a single-use reset token for the identity behind the
// email and hands it to the notifier collaborator. The literal token string is
// also returned; the core does no message formatting or delivery retries.
// Unknown emails fail with ErrNotFound so the transport layer can decide how
// much to reveal.
func (s *Service) RequestReset(ctx context.Context, email string) (string, error) {
	identity, err := s.store.FindIdentityByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return "", err
	}
	secret := make([]byte, resetTokenBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(secret)
	now := s.now().UTC()
	rec := &ResetToken{
		ID:         ids.New(),
		IdentityID: identity.ID,
		Token:      token,
		ExpiresAt:  now.Add(s.resetTTL),
		Used:       false,
		CreatedAt:  now,
	}
	if err := s.store.CreateResetToken(ctx, rec); err != nil {
		return "", err
	}
	if err := s.notifier.DeliverResetToken(ctx, identity, token); err != nil {
		// Delivery is best-effort; the token is issued regardless.
		s.log.Warn("reset token delivery failed", zap.String("identity_id", identity.ID), zap.Error(err))
	}
	s.log.Info("reset token issued", zap.String("identity_id", identity.ID))
	return token, nil
}

// ValidateReset checks a reset token and returns the owning identity.
// Validation does not consume the token: it succeeds repeatedly while the
// token is unconsumed and unexpired. A token that never existed and one that
// was already used both fail with ErrTokenInvalid; only the log line differs.
// Expired tokens fail with ErrTokenExpired.
func (s *Service) ValidateReset(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}
	rec, err := s.store.FindResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.Debug("reset token unknown")
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if rec.Used {
		s.log.Debug("reset token already used", zap.String("identity_id", rec.IdentityID))
		return nil, ErrTokenInvalid
	}
	if !rec.ExpiresAt.After(s.now()) {
		return nil, ErrTokenExpired
	}
	return s.store.FindIdentity(ctx, rec.IdentityID)
}

// ConsumeReset permanently invalidates a reset token. Called exactly once
// after a successful password change; later validations fail even before the
// token's natural expiry.
func (s *Service) ConsumeReset(ctx context.Context, token string) error {
	return s.store.MarkResetTokenUsed(ctx, token)
}

// CompleteReset validates the token, replaces the password digest and
// consumes the token.
func (s *Service) CompleteReset(ctx context.Context, token, newPassword string) error {
	identity, err := s.ValidateReset(ctx, token)
	if err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, identity.ID, hash); err != nil {
		return err
	}
	if err := s.ConsumeReset(ctx, token); err != nil {
		return err
	}
	s.log.Info("password reset completed", zap.String("identity_id", identity.ID))
	return nil
}
