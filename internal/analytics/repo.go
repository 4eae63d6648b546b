package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"postcardhub/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// RecordSearch appends one row to the search log. Empty keywords are the
// caller's problem; browse only records non-empty queries.
func (r *Repo) RecordSearch(ctx context.Context, keyword string, resultsCount int) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO search_log (keyword, results_count, at)
		VALUES (?, ?, ?)
	`, keyword, resultsCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert search log: %w", err)
	}
	return nil
}

func (r *Repo) ListSearches(ctx context.Context, limit, offset int) ([]models.SearchEntry, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM search_log
	`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search log: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, keyword, results_count, at
		FROM search_log
		ORDER BY at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list search log: %w", err)
	}
	defer rows.Close()

	out := make([]models.SearchEntry, 0, limit)
	for rows.Next() {
		var e models.SearchEntry
		if err := rows.Scan(&e.ID, &e.Keyword, &e.ResultsCount, &e.At); err != nil {
			return nil, 0, fmt.Errorf("scan search log: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows search log: %w", err)
	}

	return out, total, nil
}

type KeywordCount struct {
	Keyword  string `json:"keyword"`
	Searches int    `json:"searches"`
}

type Stats struct {
	CardsTotal  int            `json:"cards_total"`
	ByRarity    map[string]int `json:"by_rarity"`
	ViewsTotal  int            `json:"views_total"`
	LikesTotal  int            `json:"likes_total"`
	TopKeywords []KeywordCount `json:"top_keywords"`
}

// Stats aggregates the dashboard numbers in one round of queries.
func (r *Repo) Stats(ctx context.Context, topKeywords int) (*Stats, error) {
	if topKeywords <= 0 || topKeywords > 50 {
		topKeywords = 10
	}

	s := &Stats{ByRarity: make(map[string]int)}

	row := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(views_count), 0), COALESCE(SUM(likes_count), 0)
		FROM postcards
	`)
	if err := row.Scan(&s.CardsTotal, &s.ViewsTotal, &s.LikesTotal); err != nil {
		return nil, fmt.Errorf("scan card totals: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT rarity, COUNT(*)
		FROM postcards
		GROUP BY rarity
	`)
	if err != nil {
		return nil, fmt.Errorf("query rarity counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rarity string
		var n int
		if err := rows.Scan(&rarity, &n); err != nil {
			return nil, fmt.Errorf("scan rarity count: %w", err)
		}
		s.ByRarity[strings.ToLower(rarity)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows rarity counts: %w", err)
	}

	kwRows, err := r.DB.QueryContext(ctx, `
		SELECT LOWER(keyword), COUNT(*) AS n
		FROM search_log
		GROUP BY LOWER(keyword)
		ORDER BY n DESC, LOWER(keyword) ASC
		LIMIT ?
	`, topKeywords)
	if err != nil {
		return nil, fmt.Errorf("query top keywords: %w", err)
	}
	defer kwRows.Close()
	for kwRows.Next() {
		var kc KeywordCount
		if err := kwRows.Scan(&kc.Keyword, &kc.Searches); err != nil {
			return nil, fmt.Errorf("scan top keyword: %w", err)
		}
		s.TopKeywords = append(s.TopKeywords, kc)
	}
	if err := kwRows.Err(); err != nil {
		return nil, fmt.Errorf("rows top keywords: %w", err)
	}

	return s, nil
}
