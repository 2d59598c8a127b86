// Package twofactor issues and verifies short-lived one-time login codes
// and records login attempts for the admin area.
package twofactor

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"content_sync/internal/domain"
)

const (
	codeMin = 100000
	codeMax = 999999

	DefaultCodeTTL = 10 * time.Minute
)

// ClientInfo identifies the client a code was requested from.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type clientKey struct{}

func WithClient(ctx context.Context, client ClientInfo) context.Context {
	return context.WithValue(ctx, clientKey{}, client)
}

func clientFromContext(ctx context.Context) ClientInfo {
	client, _ := ctx.Value(clientKey{}).(ClientInfo)
	return client
}

type Service struct {
	codes    CodeStore
	attempts AttemptStore
	sender   Sender
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New returns a Service. Nil stores mean no remote is configured.
func New(codes CodeStore, attempts AttemptStore, sender Sender, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	logger = logger.With("component", "twofactor")
	if sender == nil {
		sender = NewLogSender(logger)
	}
	return &Service{
		codes:    codes,
		attempts: attempts,
		sender:   sender,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// GenerateCode returns a uniformly random six digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// SendCode stores a fresh code for email and hands it to the sender.
func (s *Service) SendCode(ctx context.Context, email, userID string) (*domain.AuthCode, error) {
	if s.codes == nil {
		return nil, domain.ErrRemoteNotConfigured
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}

	client := clientFromContext(ctx)
	authCode := &domain.AuthCode{
		UserID:    userID,
		Email:     email,
		Code:      code,
		ExpiresAt: s.now().Add(s.ttl),
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	}

	if err := s.codes.Insert(ctx, authCode); err != nil {
		return nil, fmt.Errorf("store code: %w", err)
	}

	if err := s.sender.Send(ctx, email, code, authCode.ExpiresAt); err != nil {
		return nil, fmt.Errorf("send code: %w", err)
	}

	s.logger.Info("code issued", "email", email, "expires_at", authCode.ExpiresAt)

	return authCode, nil
}

// ValidateCode consumes a matching unused, unexpired code. A code validates
// at most once.
func (s *Service) ValidateCode(ctx context.Context, email, code string) error {
	if s.codes == nil {
		return domain.ErrRemoteNotConfigured
	}

	id, err := s.codes.Consume(ctx, email, code, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCode) {
			s.logger.Info("code rejected", "email", email)
			return err
		}
		return fmt.Errorf("validate code: %w", err)
	}

	s.logger.Info("code accepted", "email", email, "code_id", id)
	return nil
}

// LogLoginAttempt records an attempt. Failures are logged and swallowed.
func (s *Service) LogLoginAttempt(ctx context.Context, email string, success bool, message string) {
	if s.attempts == nil {
		s.logger.Debug("login attempt not recorded, remote not configured", "email", email, "success", success)
		return
	}

	client := clientFromContext(ctx)
	attempt := &domain.LoginAttempt{
		Email:     email,
		Success:   success,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	}
	if message != "" {
		attempt.ErrorMessage = &message
	}

	if err := s.attempts.Insert(ctx, attempt); err != nil {
		s.logger.Error("failed to record login attempt", "email", email, "error", err)
	}
}

// CleanupExpired deletes expired and used codes.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	if s.codes == nil {
		return 0, domain.ErrRemoteNotConfigured
	}

	deleted, err := s.codes.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("expired codes removed", "count", deleted)
	}
	return deleted, nil
}
