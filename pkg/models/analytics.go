package models

import "time"

type SearchEntry struct {
	ID           int64     `json:"id"`
	Keyword      string    `json:"keyword"`
	ResultsCount int       `json:"results_count"`
	At           time.Time `json:"at"`
}

type ContactMessage struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
