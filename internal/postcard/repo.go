package postcard

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"postcardhub/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

type ListQuery struct {
	Q      string // keyword search in title/keywords/description/number
	Rarity string
	Theme  string
	Limit  int
	Offset int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) GetByNumber(ctx context.Context, number string) (*models.Postcard, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT number, title, description, keywords, rarity,
		       views_count, zoom_count, likes_count,
		       has_images, has_animation, created_at, updated_at
		FROM postcards
		WHERE number = ?
	`, number)

	p, err := scanPostcard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getByNumber: %w", err)
	}
	return p, nil
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	row := r.DB.QueryRowContext(ctx, sqlStr, args...)
	var total int
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Postcard, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Postcard, 0, q.Limit)
	for rows.Next() {
		p, err := scanPostcard(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// ListAll returns the whole catalog ordered by number, for the export and
// mirror commands.
func (r *Repo) ListAll(ctx context.Context) ([]models.Postcard, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT number, title, description, keywords, rarity,
		       views_count, zoom_count, likes_count,
		       has_images, has_animation, created_at, updated_at
		FROM postcards
		ORDER BY number ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list all query: %w", err)
	}
	defer rows.Close()

	var out []models.Postcard
	for rows.Next() {
		p, err := scanPostcard(rows)
		if err != nil {
			return nil, fmt.Errorf("list all scan: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) IncrementViews(ctx context.Context, number string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE postcards SET views_count = views_count + 1 WHERE number = ?
	`, number)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	return nil
}

func (r *Repo) IncrementZoom(ctx context.Context, number string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE postcards SET zoom_count = zoom_count + 1 WHERE number = ?
	`, number)
	if err != nil {
		return fmt.Errorf("increment zoom: %w", err)
	}
	return nil
}

// SetMediaFlags records whether synced media exists for a card.
func (r *Repo) SetMediaFlags(ctx context.Context, number string, hasImages, hasAnimation bool) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE postcards
		SET has_images = ?, has_animation = ?, updated_at = CURRENT_TIMESTAMP
		WHERE number = ?
	`, hasImages, hasAnimation, number)
	if err != nil {
		return fmt.Errorf("set media flags: %w", err)
	}
	return nil
}

func scanPostcard(row interface{ Scan(dest ...any) error }) (*models.Postcard, error) {
	var (
		p           models.Postcard
		description sql.NullString
		keywords    sql.NullString
	)
	if err := row.Scan(
		&p.Number, &p.Title, &description, &keywords, &p.Rarity,
		&p.ViewsCount, &p.ZoomCount, &p.LikesCount,
		&p.HasImages, &p.HasAnimation, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Description = description.String
	p.Keywords = keywords.String
	return &p, nil
}

// buildListSQL builds either COUNT(*) or the SELECT list.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	baseSelect := `
		SELECT number, title, description, keywords, rarity,
		       views_count, zoom_count, likes_count,
		       has_images, has_animation, created_at, updated_at
		FROM postcards
	`
	if countOnly {
		baseSelect = `SELECT COUNT(*) FROM postcards`
	}

	var where []string
	var args []any

	if kw := strings.TrimSpace(q.Q); kw != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(keywords) LIKE ? OR LOWER(description) LIKE ? OR number LIKE ?)")
		pat := "%" + strings.ToLower(kw) + "%"
		args = append(args, pat, pat, pat, "%"+kw+"%")
	}

	if rarity := strings.TrimSpace(q.Rarity); rarity != "" {
		where = append(where, "rarity = ?")
		args = append(args, strings.ToLower(rarity))
	}

	if theme := strings.TrimSpace(q.Theme); theme != "" {
		where = append(where, "number IN (SELECT card_number FROM theme_cards WHERE theme_name = ?)")
		args = append(args, theme)
	}

	sqlStr := baseSelect
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		sqlStr += " ORDER BY number ASC"
		sqlStr += " LIMIT ? OFFSET ?"
		limit := q.Limit
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, limit, offset)
	}

	return sqlStr, args
}
