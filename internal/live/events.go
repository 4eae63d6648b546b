package live

import "time"

// Event types broadcast on the hub.
const (
	EventCardLike    = "card.like"
	EventCardUnlike  = "card.unlike"
	EventCardComment = "card.comment"
)

type CatalogEvent struct {
	Type       string    `json:"type"`
	Card       string    `json:"card"`
	UserID     string    `json:"user_id,omitempty"`
	LikesCount int       `json:"likes_count,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	At         time.Time `json:"at"`
}
