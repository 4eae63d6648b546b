package comments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"postcardhub/pkg/models"
)

var ErrCardNotFound = errors.New("card not found")

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Create(ctx context.Context, userID, cardNumber, body string) (*models.Comment, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM postcards WHERE number = ?`, cardNumber).Scan(&one)
	if err == sql.ErrNoRows {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("check card: %w", err)
	}

	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO card_comments (card_number, user_id, body)
		VALUES (?, ?, ?)
	`, cardNumber, userID, body)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*models.Comment, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT cc.id, cc.card_number, cc.user_id, u.username, cc.body, cc.created_at
		FROM card_comments cc
		JOIN users u ON u.id = cc.user_id
		WHERE cc.id = ?
	`, id)

	var cm models.Comment
	var at time.Time
	if err := row.Scan(&cm.ID, &cm.CardNumber, &cm.UserID, &cm.Username, &cm.Body, &at); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan comment: %w", err)
	}
	cm.CreatedAt = at
	return &cm, nil
}

func (r *Repo) ListByCard(ctx context.Context, cardNumber string, limit, offset int) ([]models.Comment, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM card_comments WHERE card_number = ?
	`, cardNumber).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT cc.id, cc.card_number, cc.user_id, u.username, cc.body, cc.created_at
		FROM card_comments cc
		JOIN users u ON u.id = cc.user_id
		WHERE cc.card_number = ?
		ORDER BY cc.created_at DESC, cc.id DESC
		LIMIT ? OFFSET ?
	`, cardNumber, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	out := make([]models.Comment, 0, limit)
	for rows.Next() {
		var cm models.Comment
		var at time.Time
		if err := rows.Scan(&cm.ID, &cm.CardNumber, &cm.UserID, &cm.Username, &cm.Body, &at); err != nil {
			return nil, 0, fmt.Errorf("scan comment row: %w", err)
		}
		cm.CreatedAt = at
		out = append(out, cm)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows err: %w", err)
	}
	return out, total, nil
}

// Delete removes a comment if it belongs to the user.
func (r *Repo) Delete(ctx context.Context, id int64, userID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM card_comments
		WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}
