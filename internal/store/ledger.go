package store

import (
	"context"
	"fmt"
	"time"
)

// MarkUsed records a video identity in the ledger. Marking the same identity
// twice is a no-op so cleanup after publish stays idempotent.
func (s *Store) MarkUsed(ctx context.Context, identity, path string, usedAt time.Time) error {
	if identity == "" {
		return fmt.Errorf("mark used: empty identity")
	}
	if usedAt.IsZero() {
		usedAt = time.Now().UTC()
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO used_videos (identity, path, used_at) VALUES (?, ?, ?)
         ON CONFLICT(identity) DO NOTHING`,
		identity,
		path,
		usedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("mark used: %w", err)
	}
	return nil
}

// UsedIdentities loads the full ledger as a set for candidate filtering.
func (s *Store) UsedIdentities(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identity FROM used_videos`)
	if err != nil {
		return nil, fmt.Errorf("load used identities: %w", err)
	}
	defer rows.Close()

	used := make(map[string]struct{})
	for rows.Next() {
		var identity string
		if err := rows.Scan(&identity); err != nil {
			return nil, err
		}
		used[identity] = struct{}{}
	}
	return used, rows.Err()
}

// UsedVideos returns ledger entries newest first, capped at limit
// (0 means no cap).
func (s *Store) UsedVideos(ctx context.Context, limit int) ([]UsedVideo, error) {
	query := `SELECT identity, path, used_at FROM used_videos ORDER BY used_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list used videos: %w", err)
	}
	defer rows.Close()

	var entries []UsedVideo
	for rows.Next() {
		var (
			entry     UsedVideo
			usedAtRaw string
		)
		if err := rows.Scan(&entry.Identity, &entry.Path, &usedAtRaw); err != nil {
			return nil, err
		}
		if usedAt, err := parseTimeString(usedAtRaw); err == nil {
			entry.UsedAt = usedAt
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
