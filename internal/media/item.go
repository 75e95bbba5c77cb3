package media

import "time"

// Item describes a single media file returned by the storage listing.
// Items are immutable once listed; the run that listed them owns them.
type Item struct {
	Name      string
	Path      string
	MD5       string
	SizeBytes int64
	CreatedAt time.Time
}

// Identity returns the stable key used for ledger bookkeeping and
// deduplication: the content hash when the listing supplied one, else
// the remote path.
func (i Item) Identity() string {
	if i.MD5 != "" {
		return i.MD5
	}
	return i.Path
}
