package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"content_sync/internal/domain"
)

var (
	bannerColumns = []string{"id", "title", "subtitle", "image_url", "link_url", "sort_order"}
	videoColumns  = []string{"id", "title", "description", "cover_url", "preview_url", "video_url", "duration", "sort_order"}
	noticeColumns = []string{"id", "title", "content", "date", "sort_order"}
)

// CollectionStore persists one ordered entity collection in its own table.
// Column names must match the `db` tags of T.
type CollectionStore[T domain.Entity[T]] struct {
	db          *sqlx.DB
	tx          *TransactionManager
	table       string
	selectQuery string
	insertQuery string
	upsertQuery string
}

func NewCollectionStore[T domain.Entity[T]](db *sqlx.DB, collection domain.Collection, columns []string) *CollectionStore[T] {
	table := collection.Table()
	return &CollectionStore[T]{
		db:          db,
		tx:          NewTransactionManager(db),
		table:       table,
		selectQuery: fmt.Sprintf("SELECT %s FROM %s ORDER BY sort_order ASC, id ASC", strings.Join(columns, ", "), table),
		insertQuery: buildInsert(table, columns),
		upsertQuery: buildUpsert(table, columns),
	}
}

func NewBannerStore(db *sqlx.DB) *CollectionStore[domain.Banner] {
	return NewCollectionStore[domain.Banner](db, domain.Banners, bannerColumns)
}

func NewVideoStore(db *sqlx.DB) *CollectionStore[domain.VideoCard] {
	return NewCollectionStore[domain.VideoCard](db, domain.Videos, videoColumns)
}

func NewNoticeStore(db *sqlx.DB) *CollectionStore[domain.Notice] {
	return NewCollectionStore[domain.Notice](db, domain.Notices, noticeColumns)
}

// List returns every row ordered by sort_order. A row that fails
// validation fails the whole read.
func (s *CollectionStore[T]) List(ctx context.Context) ([]T, error) {
	var items []T
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &items, s.selectQuery); err != nil {
		return nil, fmt.Errorf("select %s: %w", s.table, err)
	}

	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("map %s row: %w", s.table, err)
		}
	}

	return items, nil
}

// ReplaceAll swaps the table contents for items in one transaction.
func (s *CollectionStore[T]) ReplaceAll(ctx context.Context, items []T) error {
	return s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := GetExecutor(txCtx, s.db)

		if _, err := exec.ExecContext(txCtx, "DELETE FROM "+s.table); err != nil {
			return fmt.Errorf("clear %s: %w", s.table, err)
		}

		if len(items) == 0 {
			return nil
		}

		if _, err := sqlx.NamedExecContext(txCtx, exec, s.insertQuery, items); err != nil {
			return fmt.Errorf("insert %s: %w", s.table, err)
		}

		return nil
	})
}

func (s *CollectionStore[T]) Upsert(ctx context.Context, item T) error {
	if _, err := sqlx.NamedExecContext(ctx, GetExecutor(ctx, s.db), s.upsertQuery, item); err != nil {
		return fmt.Errorf("upsert %s %s: %w", s.table, item.EntityID(), err)
	}
	return nil
}

func (s *CollectionStore[T]) Delete(ctx context.Context, id string) error {
	query := "DELETE FROM " + s.table + " WHERE id = $1"
	if _, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", s.table, id, err)
	}
	return nil
}

func buildInsert(table string, columns []string) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(") VALUES (")
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(":")
		sb.WriteString(col)
	}
	sb.WriteString(")")
	return sb.String()
}

func buildUpsert(table string, columns []string) string {
	var sb strings.Builder
	sb.WriteString(buildInsert(table, columns))
	sb.WriteString(" ON CONFLICT (id) DO UPDATE SET ")
	first := true
	for _, col := range columns {
		if col == "id" {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(col)
		sb.WriteString(" = EXCLUDED.")
		sb.WriteString(col)
	}
	return sb.String()
}
