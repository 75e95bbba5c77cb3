// Package store persists posting history, the used-video ledger, and
// per-brand monthly statistics in a single SQLite database.
//
// The ledger is append-only: once a video identity is marked used it is
// never scheduled again, even if the remote file reappears. Failed posts
// release their slot; queued, processing, and published posts hold it.
package store
