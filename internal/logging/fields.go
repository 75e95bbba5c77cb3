package logging

// Standardized attribute keys. Every component logs with these so runs can
// be traced across the pipeline by run_id and post_id.
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldPostID    = "post_id"
	FieldVideo     = "video"
	FieldTheme     = "theme"
	FieldBrand     = "brand"
	FieldAuthor    = "author"
	FieldPlatform  = "platform"
	FieldProfile   = "profile"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
)
