// Command autopost is the CLI for the video auto-publishing pipeline. It can
// run a full cycle, preview the allocation, and inspect the posting history,
// brand statistics, and used-video ledger.
package main
