package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"content_sync/internal/domain"
)

type promoRow struct {
	ID string `db:"id"`
	domain.PromoCard
}

// PromoStore keeps one row per promo slot, keyed by the slot name.
type PromoStore struct {
	db *sqlx.DB
}

func NewPromoStore(db *sqlx.DB) *PromoStore {
	return &PromoStore{db: db}
}

func (s *PromoStore) Get(ctx context.Context, slot domain.PromoSlot) (*domain.PromoCard, error) {
	query := `
		SELECT id, title, description, button_text, button_link, is_active
		FROM promos
		WHERE id = $1`

	var row promoRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query, string(slot))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("promo %s: %w", slot, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select promo %s: %w", slot, err)
	}

	return &row.PromoCard, nil
}

// Upsert writes the full card; no column is left at a previous value.
func (s *PromoStore) Upsert(ctx context.Context, slot domain.PromoSlot, promo domain.PromoCard) error {
	query := `
		INSERT INTO promos (id, title, description, button_text, button_link, is_active)
		VALUES (:id, :title, :description, :button_text, :button_link, :is_active)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			button_text = EXCLUDED.button_text,
			button_link = EXCLUDED.button_link,
			is_active = EXCLUDED.is_active`

	row := promoRow{ID: string(slot), PromoCard: promo}
	if _, err := sqlx.NamedExecContext(ctx, GetExecutor(ctx, s.db), query, row); err != nil {
		return fmt.Errorf("upsert promo %s: %w", slot, err)
	}
	return nil
}
