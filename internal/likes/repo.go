package likes

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

// Toggle flips one viewer's like on one card and keeps the denormalized
// likes_count in step, all in a single transaction. Exactly one of userID
// and sessionKey identifies the viewer.
func (r *Repo) Toggle(ctx context.Context, cardNumber, userID, sessionKey string) (liked bool, likesCount int, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("begin toggle: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM postcards WHERE number = ?`, cardNumber).Scan(&one)
	if err == sql.ErrNoRows {
		return false, 0, ErrCardNotFound
	}
	if err != nil {
		return false, 0, fmt.Errorf("check card: %w", err)
	}

	viewerClause := "user_id = ?"
	viewer := userID
	if userID == "" {
		viewerClause = "session_key = ?"
		viewer = sessionKey
	}

	err = tx.QueryRowContext(ctx, `
		SELECT 1 FROM card_likes WHERE card_number = ? AND `+viewerClause,
		cardNumber, viewer).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		var uid, skey any
		if userID != "" {
			uid = userID
		} else {
			skey = sessionKey
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO card_likes (card_number, user_id, session_key)
			VALUES (?, ?, ?)
		`, cardNumber, uid, skey); err != nil {
			return false, 0, fmt.Errorf("insert like: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE postcards SET likes_count = likes_count + 1 WHERE number = ?
		`, cardNumber); err != nil {
			return false, 0, fmt.Errorf("bump likes: %w", err)
		}
		liked = true

	case err != nil:
		return false, 0, fmt.Errorf("check like: %w", err)

	default:
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM card_likes WHERE card_number = ? AND `+viewerClause,
			cardNumber, viewer); err != nil {
			return false, 0, fmt.Errorf("delete like: %w", err)
		}
		// floor at zero in case the counter ever drifted low
		if _, err := tx.ExecContext(ctx, `
			UPDATE postcards SET likes_count = MAX(likes_count - 1, 0) WHERE number = ?
		`, cardNumber); err != nil {
			return false, 0, fmt.Errorf("drop likes: %w", err)
		}
		liked = false
	}

	if err := tx.QueryRowContext(ctx, `
		SELECT likes_count FROM postcards WHERE number = ?
	`, cardNumber).Scan(&likesCount); err != nil {
		return false, 0, fmt.Errorf("read likes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("commit toggle: %w", err)
	}
	return liked, likesCount, nil
}

// ListByUser returns the cards an authenticated user has liked, most
// recent like first.
func (r *Repo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Postcard, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM card_likes WHERE user_id = ?
	`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count likes: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT p.number, p.title, p.description, p.keywords, p.rarity,
		       p.views_count, p.zoom_count, p.likes_count,
		       p.has_images, p.has_animation, p.created_at, p.updated_at
		FROM card_likes cl
		JOIN postcards p ON p.number = cl.card_number
		WHERE cl.user_id = ?
		ORDER BY cl.created_at DESC, p.number DESC
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list likes: %w", err)
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
			return nil, 0, fmt.Errorf("scan liked card: %w", err)
		}
		p.Description = description.String
		p.Keywords = keywords.String
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows likes: %w", err)
	}

	return out, total, nil
}
