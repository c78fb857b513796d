package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// PlayerID identifies a forum user. Equality is exact string match.
type PlayerID string

// String returns the string representation of the player ID
func (p PlayerID) String() string {
	return string(p)
}

// timestampLayouts are tried in order when parsing post timestamps
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700", // XenForo <time datetime="...">
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Timestamp is the time a post was made. Raw always holds the source text;
// Time is zero when Raw could not be parsed.
type Timestamp struct {
	Raw  string
	Time time.Time
}

// ParseTimestamp parses raw post time text. Unparseable text is kept as an opaque timestamp.
func ParseTimestamp(raw string) Timestamp {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Timestamp{Raw: raw, Time: t}
		}
	}
	return Timestamp{Raw: raw}
}

// NewTimestamp creates a timestamp from a known instant
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Raw: t.Format(time.RFC3339), Time: t}
}

// Valid reports whether the timestamp carries a parsed instant
func (t Timestamp) Valid() bool {
	return !t.Time.IsZero()
}

// Compare orders timestamps. Parsed instants compare chronologically and sort
// before unparsed ones; unparsed ones compare by their raw text.
func (t Timestamp) Compare(o Timestamp) int {
	switch {
	case t.Valid() && o.Valid():
		return t.Time.Compare(o.Time)
	case t.Valid():
		return -1
	case o.Valid():
		return 1
	default:
		return strings.Compare(t.Raw, o.Raw)
	}
}

// Before reports whether t sorts strictly before o
func (t Timestamp) Before(o Timestamp) bool {
	return t.Compare(o) < 0
}

// String returns the raw text
func (t Timestamp) String() string {
	return t.Raw
}

// MarshalJSON encodes the timestamp as its raw text
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Raw)
}

// UnmarshalJSON parses the raw text form
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = ParseTimestamp(raw)
	return nil
}

// VoteEvent is one vote line in one post. Never mutated after parsing.
type VoteEvent struct {
	Voter     PlayerID  `json:"voter"`
	Target    PlayerID  `json:"target"`
	PostID    string    `json:"postId"`
	Timestamp Timestamp `json:"timestamp"`
}

// PostRecord is a post as extracted from a thread page, quotes already stripped
type PostRecord struct {
	AuthorID      string
	PostID        string
	TimestampText string
	Body          string
}
