package postcard

import (
	"context"
	"database/sql"
	"fmt"

	"postcardhub/internal/ingest"
	"postcardhub/pkg/models"
)

// CatalogStore adapts the postcards table to the ingest store interfaces so
// imports run inside ordinary SQL transactions.
type CatalogStore struct {
	DB *sql.DB
}

func NewCatalogStore(db *sql.DB) *CatalogStore {
	return &CatalogStore{DB: db}
}

func (s *CatalogStore) Begin(ctx context.Context) (ingest.StoreTx, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &catalogTx{tx: tx}, nil
}

type catalogTx struct {
	tx *sql.Tx
}

func (t *catalogTx) FindByNumber(ctx context.Context, number string) (*models.CardRecord, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT number, title, description, keywords, rarity
		FROM postcards
		WHERE number = ?
	`, number)

	var (
		rec         models.CardRecord
		description sql.NullString
		keywords    sql.NullString
	)
	err := row.Scan(&rec.Number, &rec.Title, &description, &keywords, &rec.Rarity)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan card: %w", err)
	}
	rec.Description = description.String
	rec.Keywords = keywords.String
	return &rec, nil
}

func (t *catalogTx) Create(ctx context.Context, rec models.CardRecord) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO postcards (number, title, description, keywords, rarity)
		VALUES (?, ?, ?, ?, ?)
	`, rec.Number, rec.Title, rec.Description, rec.Keywords, rec.Rarity)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

// Update replaces the descriptive fields only. Counters and media flags
// belong to the running service, not the import source.
func (t *catalogTx) Update(ctx context.Context, number string, rec models.CardRecord) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE postcards
		SET title = ?, description = ?, keywords = ?, rarity = ?, updated_at = CURRENT_TIMESTAMP
		WHERE number = ?
	`, rec.Title, rec.Description, rec.Keywords, rec.Rarity, number)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	return nil
}

func (t *catalogTx) DeleteAll(ctx context.Context) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM postcards`)
	if err != nil {
		return 0, fmt.Errorf("delete all: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (t *catalogTx) Count(ctx context.Context) (int64, error) {
	var total int64
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM postcards`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count cards: %w", err)
	}
	return total, nil
}

func (t *catalogTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (t *catalogTx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}
