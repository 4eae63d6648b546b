package contact

import (
	"context"
	"database/sql"
	"fmt"

	"postcardhub/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Create(ctx context.Context, name, email, body string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO contact_messages (name, email, body)
		VALUES (?, ?, ?)
	`, name, email, body)
	if err != nil {
		return fmt.Errorf("insert contact message: %w", err)
	}
	return nil
}

func (r *Repo) List(ctx context.Context, limit, offset int) ([]models.ContactMessage, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM contact_messages
	`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contact messages: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, name, email, body, created_at
		FROM contact_messages
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list contact messages: %w", err)
	}
	defer rows.Close()

	out := make([]models.ContactMessage, 0, limit)
	for rows.Next() {
		var m models.ContactMessage
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Body, &m.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan contact message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows contact messages: %w", err)
	}

	return out, total, nil
}
