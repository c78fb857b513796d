package domain

import (
	"encoding/json"
	"time"
)

// Cutoff is an optional upper time bound for the working set.
// The zero value is unset and admits every event.
type Cutoff struct {
	at  time.Time
	set bool
}

// NoCutoff returns an unset cutoff
func NoCutoff() Cutoff {
	return Cutoff{}
}

// CutoffAt returns a cutoff at the given instant
func CutoffAt(t time.Time) Cutoff {
	return Cutoff{at: t, set: true}
}

// IsSet reports whether the cutoff bounds anything
func (c Cutoff) IsSet() bool {
	return c.set
}

// Time returns the cutoff instant (zero if unset)
func (c Cutoff) Time() time.Time {
	return c.at
}

// Admits reports whether a timestamp is at or before the cutoff.
// Unparsed timestamps are only admitted when the cutoff is unset.
func (c Cutoff) Admits(ts Timestamp) bool {
	if !c.set {
		return true
	}
	return ts.Valid() && !ts.Time.After(c.at)
}

// Equal reports whether two cutoffs bound at the same instant
func (c Cutoff) Equal(o Cutoff) bool {
	if c.set != o.set {
		return false
	}
	return !c.set || c.at.Equal(o.at)
}

// MarshalJSON encodes an unset cutoff as null
func (c Cutoff) MarshalJSON() ([]byte, error) {
	if !c.set {
		return []byte("null"), nil
	}
	return json.Marshal(c.at)
}
