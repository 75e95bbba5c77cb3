// Package services defines shared utilities consumed by the external API
// clients under internal/services and by the pipeline that drives them.
//
// Key responsibilities:
//   - Context helpers that stamp run and post identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (transient vs configuration vs upstream) without string
//     matching.
//
// Use these helpers when wiring new clients so error handling and retry
// behaviour stays uniform across the pipeline.
package services
