// Package captioner generates publish-ready captions through an
// OpenRouter-compatible chat completion API.
//
// Generation is best-effort: callers fall back to Fallback's deterministic
// caption when the model is unavailable, so a captioning failure never
// blocks a publish.
package captioner
