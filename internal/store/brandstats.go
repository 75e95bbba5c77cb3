package store

import (
	"context"
	"fmt"
	"time"
)

// MonthKey formats the calendar-month key brand statistics are grouped by.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// IncrementBrand bumps the published counter for a brand in the month the
// post went out.
func (s *Store) IncrementBrand(ctx context.Context, brand, month string) error {
	if brand == "" || month == "" {
		return fmt.Errorf("increment brand: brand and month are required")
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO brand_stats (brand, month, published) VALUES (?, ?, 1)
         ON CONFLICT(brand, month) DO UPDATE SET published = published + 1`,
		brand,
		month,
	)
	if err != nil {
		return fmt.Errorf("increment brand: %w", err)
	}
	return nil
}

// PublishedByBrand returns the published counts for one month keyed by brand.
func (s *Store) PublishedByBrand(ctx context.Context, month string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT brand, published FROM brand_stats WHERE month = ?`, month)
	if err != nil {
		return nil, fmt.Errorf("load brand stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var (
			brand     string
			published int
		)
		if err := rows.Scan(&brand, &published); err != nil {
			return nil, err
		}
		stats[brand] = published
	}
	return stats, rows.Err()
}

// BrandMonths returns all recorded brand statistics, newest month first.
func (s *Store) BrandMonths(ctx context.Context) ([]BrandMonth, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT brand, month, published FROM brand_stats ORDER BY month DESC, brand`)
	if err != nil {
		return nil, fmt.Errorf("list brand stats: %w", err)
	}
	defer rows.Close()

	var entries []BrandMonth
	for rows.Next() {
		var entry BrandMonth
		if err := rows.Scan(&entry.Brand, &entry.Month, &entry.Published); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
