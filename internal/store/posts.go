package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const postColumns = "id, run_id, profile, platform, theme, brand, author, video_path, video_identity, caption, title, scheduled_at, status, error_message, job_id, created_at, updated_at, published_at"

// InsertPost persists a new planned post. A missing ID or status is filled
// in; the post is returned with those fields set.
func (s *Store) InsertPost(ctx context.Context, post *Post) error {
	if post == nil {
		return errors.New("post is nil")
	}
	if post.ID == "" {
		post.ID = uuid.New().String()
	}
	if post.Status == "" {
		post.Status = StatusQueued
	}
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO posting_history (
            id, run_id, profile, platform, theme, brand, author,
            video_path, video_identity, caption, title, scheduled_at,
            status, error_message, job_id, created_at, updated_at, published_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.RunID,
		post.Profile,
		post.Platform,
		post.Theme,
		post.Brand,
		post.Author,
		post.VideoPath,
		post.VideoIdentity,
		post.Caption,
		post.Title,
		post.ScheduledAt.UTC().Format(time.RFC3339Nano),
		post.Status,
		nullableString(post.ErrorMessage),
		nullableString(post.JobID),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		nullableTime(post.PublishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// UpdatePost persists changes to an existing post.
func (s *Store) UpdatePost(ctx context.Context, post *Post) error {
	if post == nil {
		return errors.New("post is nil")
	}
	post.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE posting_history
         SET caption = ?, title = ?, scheduled_at = ?, status = ?,
             error_message = ?, job_id = ?, updated_at = ?, published_at = ?
         WHERE id = ?`,
		post.Caption,
		post.Title,
		post.ScheduledAt.UTC().Format(time.RFC3339Nano),
		post.Status,
		nullableString(post.ErrorMessage),
		nullableString(post.JobID),
		post.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(post.PublishedAt),
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("post %s not found", post.ID)
	}
	return nil
}

// PostByID fetches a post by identifier. Returns nil when absent.
func (s *Store) PostByID(ctx context.Context, id string) (*Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posting_history WHERE id = ?`, id)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// Posts returns posts filtered by status set (or all posts when no status is
// provided), ordered by scheduled time.
func (s *Store) Posts(ctx context.Context, statuses ...Status) ([]*Post, error) {
	baseQuery := `SELECT ` + postColumns + ` FROM posting_history`
	orderClause := ` ORDER BY scheduled_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// PostsByRun returns every post created by one pipeline run.
func (s *Store) PostsByRun(ctx context.Context, runID string) ([]*Post, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+postColumns+` FROM posting_history WHERE run_id = ? ORDER BY scheduled_at`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list posts by run: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// DueQueued returns queued posts whose slot falls inside [from, until],
// oldest slot first. These are the posts a dispatch pass should publish.
func (s *Store) DueQueued(ctx context.Context, from, until time.Time) ([]*Post, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+postColumns+` FROM posting_history
         WHERE status = ? AND scheduled_at >= ? AND scheduled_at <= ?
         ORDER BY scheduled_at`,
		StatusQueued,
		from.UTC().Format(time.RFC3339Nano),
		until.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("list due posts: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// ScheduledTimes returns the slot times already claimed for a profile and
// platform inside [from, until], regardless of post status. Failed posts do
// not hold their slot.
func (s *Store) ScheduledTimes(ctx context.Context, profile, platform string, from, until time.Time) ([]time.Time, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT scheduled_at FROM posting_history
         WHERE profile = ? AND platform = ? AND status != ?
           AND scheduled_at >= ? AND scheduled_at <= ?
         ORDER BY scheduled_at`,
		profile,
		platform,
		StatusFailed,
		from.UTC().Format(time.RFC3339Nano),
		until.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("list scheduled times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		parsed, err := parseTimeString(raw)
		if err != nil {
			continue
		}
		times = append(times, parsed)
	}
	return times, rows.Err()
}

// StatusCounts aggregates posts by status for reporting.
func (s *Store) StatusCounts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM posting_history GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

// ClearFailed removes failed posts from the history.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM posting_history WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

func collectPosts(rows *sql.Rows) ([]*Post, error) {
	var posts []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func scanPost(scanner interface{ Scan(dest ...any) error }) (*Post, error) {
	var (
		id           string
		runID        string
		profile      string
		platform     string
		theme        string
		brand        string
		author       string
		videoPath    string
		videoID      string
		caption      string
		title        string
		scheduledRaw string
		statusStr    string
		errorMessage sql.NullString
		jobID        sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		publishedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&runID,
		&profile,
		&platform,
		&theme,
		&brand,
		&author,
		&videoPath,
		&videoID,
		&caption,
		&title,
		&scheduledRaw,
		&statusStr,
		&errorMessage,
		&jobID,
		&createdRaw,
		&updatedRaw,
		&publishedRaw,
	); err != nil {
		return nil, err
	}

	post := &Post{
		ID:            id,
		RunID:         runID,
		Profile:       profile,
		Platform:      platform,
		Theme:         theme,
		Brand:         brand,
		Author:        author,
		VideoPath:     videoPath,
		VideoIdentity: videoID,
		Caption:       caption,
		Title:         title,
		Status:        Status(statusStr),
		ErrorMessage:  errorMessage.String,
		JobID:         jobID.String,
	}
	if scheduled, err := parseTimeString(scheduledRaw); err == nil {
		post.ScheduledAt = scheduled
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		post.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		post.UpdatedAt = updated
	}
	if publishedRaw.Valid {
		if published, err := parseTimeString(publishedRaw.String); err == nil {
			post.PublishedAt = &published
		}
	}
	return post, nil
}
