package models

import "time"

type Postcard struct {
	Number       string    `json:"number"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Keywords     string    `json:"keywords,omitempty"`
	Rarity       string    `json:"rarity"`
	ViewsCount   int       `json:"views_count"`
	ZoomCount    int       `json:"zoom_count"`
	LikesCount   int       `json:"likes_count"`
	HasImages    bool      `json:"has_images"`
	HasAnimation bool      `json:"has_animation"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
