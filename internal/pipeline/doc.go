// Package pipeline runs one end-to-end cycle: list the remote videos,
// allocate them onto profile slots, persist the schedule, and dispatch the
// posts that are due today.
package pipeline
