package models

type Theme struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	SortOrder   int    `json:"sort_order"`
	CardCount   int    `json:"card_count,omitempty"`
}
