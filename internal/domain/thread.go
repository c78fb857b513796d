package domain

// ThreadInfo is one entry of the thread directory listing
type ThreadInfo struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Pages int    `json:"pages"`
}
