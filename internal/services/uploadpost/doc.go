// Package uploadpost submits scheduled uploads to the upload-post publishing
// API and inspects the jobs it is still holding.
//
// Request bodies are shaped by the per-platform strategies in
// internal/platform; this package only carries them over the wire.
package uploadpost
