package models

import "time"

type Comment struct {
	ID         int64     `json:"id"`
	CardNumber string    `json:"card_number"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}
