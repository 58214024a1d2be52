package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("store: not found")

type Posting struct {
	ID           int64     `json:"id"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Company      string    `json:"company"`
	Platform     string    `json:"platform"`
	DiscoveredAt time.Time `json:"discoveredAt"`
}

// FindPostingByURL is the dedup lookup. URL is the identity key.
func FindPostingByURL(ctx context.Context, db *sql.DB, url string) (*Posting, error) {
	row := db.QueryRowContext(ctx, `
SELECT id, url, title, company, platform, discovered_at
FROM postings
WHERE url = ?;`, url)

	var p Posting
	var ts string
	err := row.Scan(&p.ID, &p.URL, &p.Title, &p.Company, &p.Platform, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find posting: %w", err)
	}
	p.DiscoveredAt, _ = time.Parse(time.RFC3339, ts)
	return &p, nil
}

// CreatePosting inserts a new posting. The UNIQUE constraint on url is the
// backstop; callers are expected to have checked FindPostingByURL first.
func CreatePosting(ctx context.Context, db *sql.DB, url, title, company, platform string) (*Posting, error) {
	p := Posting{
		URL:          strings.TrimSpace(url),
		Title:        strings.TrimSpace(title),
		Company:      strings.TrimSpace(company),
		Platform:     platform,
		DiscoveredAt: time.Now().UTC(),
	}
	if p.URL == "" {
		return nil, errors.New("missing url")
	}
	if p.Title == "" {
		p.Title = "Job Posting"
	}
	if p.Company == "" {
		p.Company = "Unknown"
	}

	res, err := db.ExecContext(ctx, `
INSERT INTO postings(url, title, company, platform, discovered_at)
VALUES(?,?,?,?,?);`,
		p.URL, p.Title, p.Company, p.Platform, p.DiscoveredAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert posting: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return &p, nil
}

func ListPostings(ctx context.Context, db *sql.DB, limit int) ([]Posting, error) {
	if limit <= 0 || limit > 2000 {
		limit = 500
	}
	rows, err := db.QueryContext(ctx, `
SELECT id, url, title, company, platform, discovered_at
FROM postings
ORDER BY id DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Posting
	for rows.Next() {
		var p Posting
		var ts string
		if err := rows.Scan(&p.ID, &p.URL, &p.Title, &p.Company, &p.Platform, &ts); err != nil {
			return nil, err
		}
		p.DiscoveredAt, _ = time.Parse(time.RFC3339, ts)
		out = append(out, p)
	}
	return out, rows.Err()
}
