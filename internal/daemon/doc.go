// Package daemon keeps the pipeline running on a daily schedule. It checks
// the configured run time once per tick, triggers at most one run per
// calendar day, and uses a flock-based lock file to prevent a second daemon
// instance from racing the first.
package daemon
