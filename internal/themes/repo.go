package themes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"postcardhub/pkg/models"
)

var ErrCardNotFound = errors.New("card not found")

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) ListThemes(ctx context.Context) ([]models.Theme, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT t.name, t.display_name, t.sort_order, COUNT(tc.card_number)
		FROM themes t
		LEFT JOIN theme_cards tc ON tc.theme_name = t.name
		GROUP BY t.name, t.display_name, t.sort_order
		ORDER BY t.sort_order ASC, t.name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	defer rows.Close()

	var out []models.Theme
	for rows.Next() {
		var th models.Theme
		if err := rows.Scan(&th.Name, &th.DisplayName, &th.SortOrder, &th.CardCount); err != nil {
			return nil, fmt.Errorf("scan theme: %w", err)
		}
		out = append(out, th)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows themes: %w", err)
	}
	return out, nil
}

func (r *Repo) GetTheme(ctx context.Context, name string) (*models.Theme, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT name, display_name, sort_order FROM themes WHERE name = ?
	`, name)

	var th models.Theme
	if err := row.Scan(&th.Name, &th.DisplayName, &th.SortOrder); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get theme: %w", err)
	}
	return &th, nil
}

func (r *Repo) ListCards(ctx context.Context, name string, limit, offset int) ([]models.Postcard, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM theme_cards WHERE theme_name = ?
	`, name).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count theme cards: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT p.number, p.title, p.description, p.keywords, p.rarity,
		       p.views_count, p.zoom_count, p.likes_count,
		       p.has_images, p.has_animation, p.created_at, p.updated_at
		FROM theme_cards tc
		JOIN postcards p ON p.number = tc.card_number
		WHERE tc.theme_name = ?
		ORDER BY p.number ASC
		LIMIT ? OFFSET ?
	`, name, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list theme cards: %w", err)
	}
	defer rows.Close()

	out := make([]models.Postcard, 0, limit)
	for rows.Next() {
		var (
			p           models.Postcard
			description sql.NullString
			keywords    sql.NullString
		)
		if err := rows.Scan(
			&p.Number, &p.Title, &description, &keywords, &p.Rarity,
			&p.ViewsCount, &p.ZoomCount, &p.LikesCount,
			&p.HasImages, &p.HasAnimation, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan theme card: %w", err)
		}
		p.Description = description.String
		p.Keywords = keywords.String
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows theme cards: %w", err)
	}

	return out, total, nil
}

// AssignCard adds a card to a theme, creating the theme row on first use.
// Assigning twice is a no-op.
func (r *Repo) AssignCard(ctx context.Context, theme models.Theme, cardNumber string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assign: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM postcards WHERE number = ?`, cardNumber).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrCardNotFound
	}
	if err != nil {
		return fmt.Errorf("check card: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO themes (name, display_name, sort_order)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			display_name = excluded.display_name,
			sort_order = excluded.sort_order
	`, theme.Name, theme.DisplayName, theme.SortOrder); err != nil {
		return fmt.Errorf("upsert theme: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO theme_cards (theme_name, card_number)
		VALUES (?, ?)
		ON CONFLICT(theme_name, card_number) DO NOTHING
	`, theme.Name, cardNumber); err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assign: %w", err)
	}
	return nil
}

// RemoveCard drops a membership, reporting whether anything was removed.
func (r *Repo) RemoveCard(ctx context.Context, themeName, cardNumber string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM theme_cards WHERE theme_name = ? AND card_number = ?
	`, themeName, cardNumber)
	if err != nil {
		return false, fmt.Errorf("remove membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove membership rows: %w", err)
	}
	return n > 0, nil
}
