package twofactor

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"content_sync/internal/domain"
)

type CodeStore interface {
	Insert(ctx context.Context, code *domain.AuthCode) error
	Consume(ctx context.Context, email, code string, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type AttemptStore interface {
	Insert(ctx context.Context, attempt *domain.LoginAttempt) error
}

// Sender delivers a code to its owner.
type Sender interface {
	Send(ctx context.Context, email, code string, expiresAt time.Time) error
}
