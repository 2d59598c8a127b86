package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"content_sync/internal/domain"
)

type AuthCodeStore struct {
	db *sqlx.DB
}

func NewAuthCodeStore(db *sqlx.DB) *AuthCodeStore {
	return &AuthCodeStore{db: db}
}

func (s *AuthCodeStore) Insert(ctx context.Context, code *domain.AuthCode) error {
	query := `
		INSERT INTO auth_codes (user_id, email, code, expires_at, used, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := s.db.QueryRowxContext(ctx, query,
		code.UserID,
		code.Email,
		code.Code,
		code.ExpiresAt,
		code.Used,
		code.IPAddress,
		code.UserAgent,
	).Scan(&code.ID, &code.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert auth code: %w", err)
	}
	return nil
}

// Consume marks the newest unused, unexpired code matching email and code
// as used and returns its id. Concurrent callers cannot both consume it.
func (s *AuthCodeStore) Consume(ctx context.Context, email, code string, now time.Time) (int64, error) {
	query := `
		UPDATE auth_codes SET used = TRUE
		WHERE id = (
			SELECT id FROM auth_codes
			WHERE email = $1 AND code = $2 AND used = FALSE AND expires_at > $3
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id`

	var id int64
	err := s.db.QueryRowxContext(ctx, query, email, code, now).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrInvalidCode
	}
	if err != nil {
		return 0, fmt.Errorf("consume auth code: %w", err)
	}
	return id, nil
}

func (s *AuthCodeStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM auth_codes WHERE expires_at <= $1 OR used = TRUE",
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired auth codes: %w", err)
	}
	return res.RowsAffected()
}

type LoginAttemptStore struct {
	db *sqlx.DB
}

func NewLoginAttemptStore(db *sqlx.DB) *LoginAttemptStore {
	return &LoginAttemptStore{db: db}
}

func (s *LoginAttemptStore) Insert(ctx context.Context, attempt *domain.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (email, success, ip_address, user_agent, error_message)
		VALUES (:email, :success, :ip_address, :user_agent, :error_message)`

	if _, err := s.db.NamedExecContext(ctx, query, attempt); err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}
	return nil
}
