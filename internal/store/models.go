package store

import "time"

// Status represents the lifecycle of a scheduled post.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusPublished  Status = "published"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusPublished,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseStatus validates a user-supplied status string.
func ParseStatus(value string) (Status, bool) {
	status := Status(value)
	_, ok := statusSet[status]
	return status, ok
}

// AllStatuses returns every recognized post status.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Post is one planned platform publication persisted in SQLite. A video
// scheduled to three platforms produces three posts sharing video identity.
type Post struct {
	ID            string
	RunID         string
	Profile       string
	Platform      string
	Theme         string
	Brand         string
	Author        string
	VideoPath     string
	VideoIdentity string
	Caption       string
	Title         string
	ScheduledAt   time.Time
	Status        Status
	ErrorMessage  string
	JobID         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PublishedAt   *time.Time
}

// UsedVideo is a ledger entry recording that a video's content has been
// published and must never be scheduled again.
type UsedVideo struct {
	Identity string
	Path     string
	UsedAt   time.Time
}

// BrandMonth aggregates published posts for a brand within a calendar month.
type BrandMonth struct {
	Brand     string
	Month     string // "2006-01"
	Published int
}
