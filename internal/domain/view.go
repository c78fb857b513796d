package domain

// ViewMode selects how the working set is derived from the events
type ViewMode string

const (
	ViewLatest ViewMode = "latest" // Each voter's most recent vote only
	ViewAll    ViewMode = "all"    // Every vote event
)

// String returns the string representation of the view mode
func (m ViewMode) String() string {
	return string(m)
}

// ParseViewMode maps "all" to ViewAll and anything else to ViewLatest
func ParseViewMode(s string) ViewMode {
	if s == string(ViewAll) {
		return ViewAll
	}
	return ViewLatest
}
