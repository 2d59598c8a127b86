package domain

import "time"

type AuthCode struct {
	ID        int64     `db:"id"`
	UserID    string    `db:"user_id"`
	Email     string    `db:"email"`
	Code      string    `db:"code"`
	ExpiresAt time.Time `db:"expires_at"`
	Used      bool      `db:"used"`
	IPAddress string    `db:"ip_address"`
	UserAgent string    `db:"user_agent"`
	CreatedAt time.Time `db:"created_at"`
}

type LoginAttempt struct {
	Email        string  `db:"email"`
	Success      bool    `db:"success"`
	IPAddress    string  `db:"ip_address"`
	UserAgent    string  `db:"user_agent"`
	ErrorMessage *string `db:"error_message"`
}
