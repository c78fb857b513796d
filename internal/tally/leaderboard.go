package tally

import (
	"fmt"
	"slices"
	"strings"

	"varulv/internal/domain"
)

// NoOne is the target reported when there are no votes
const NoOne domain.PlayerID = "no one"

// UnknownTime is shown where a timestamp is missing
const UnknownTime = "unknown time"

// DisplayTimeLayout is used when rendering timestamps as text
const DisplayTimeLayout = "2006-01-02 15:04"

// Entry is one target's position on the leaderboard
type Entry struct {
	Target      domain.PlayerID  `json:"target"`
	VoteCount   int              `json:"voteCount"`
	FirstVoteAt domain.Timestamp `json:"firstVoteAt"`
}

// Leaderboard is the ranked vote count of a working set
type Leaderboard struct {
	entries []Entry
	last    domain.Timestamp
	hasLast bool
}

// Aggregate counts votes per target and ranks them: most votes first,
// then earliest first vote, then target name.
func Aggregate(events []domain.VoteEvent) *Leaderboard {
	byTarget := make(map[domain.PlayerID]*Entry)
	order := make([]domain.PlayerID, 0)
	lb := &Leaderboard{}

	for _, e := range chronological(events) {
		entry, ok := byTarget[e.Target]
		if !ok {
			entry = &Entry{Target: e.Target, FirstVoteAt: e.Timestamp}
			byTarget[e.Target] = entry
			order = append(order, e.Target)
		}
		entry.VoteCount++
		if earlier(e.Timestamp, entry.FirstVoteAt) {
			entry.FirstVoteAt = e.Timestamp
		}

		if e.Timestamp.Valid() && (!lb.hasLast || earlier(lb.last, e.Timestamp)) {
			lb.last = e.Timestamp
			lb.hasLast = true
		}
	}

	lb.entries = make([]Entry, 0, len(order))
	for _, target := range order {
		lb.entries = append(lb.entries, *byTarget[target])
	}
	rank(lb.entries)

	return lb
}

// earlier orders timestamps by instant, then by raw text for equal instants
func earlier(a, b domain.Timestamp) bool {
	if c := a.Compare(b); c != 0 {
		return c < 0
	}
	return a.Raw < b.Raw
}

// rank sorts entries into leaderboard order
func rank(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		if a.VoteCount != b.VoteCount {
			return b.VoteCount - a.VoteCount
		}
		if c := a.FirstVoteAt.Compare(b.FirstVoteAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.Target), string(b.Target))
	})
}

// Top returns the target most at risk, or NoOne with zero votes
func (l *Leaderboard) Top() Entry {
	if len(l.entries) == 0 {
		return Entry{Target: NoOne}
	}
	return l.entries[0]
}

// Entries returns the full ranking
func (l *Leaderboard) Entries() []Entry {
	return slices.Clone(l.entries)
}

// Len returns the number of distinct targets
func (l *Leaderboard) Len() int {
	return len(l.entries)
}

// Count returns the votes against a target
func (l *Leaderboard) Count(target domain.PlayerID) int {
	for _, e := range l.entries {
		if e.Target == target {
			return e.VoteCount
		}
	}
	return 0
}

// LastVoteAt returns the most recent parsed timestamp in the set
func (l *Leaderboard) LastVoteAt() (domain.Timestamp, bool) {
	return l.last, l.hasLast
}

// Summary renders the "most at risk" line
func (l *Leaderboard) Summary() string {
	top := l.Top()
	since := UnknownTime
	if top.Target != NoOne {
		since = FormatTimestamp(top.FirstVoteAt)
	}
	last := UnknownTime
	if ts, ok := l.LastVoteAt(); ok {
		last = FormatTimestamp(ts)
	}
	return fmt.Sprintf("%s (%d votes, since %s). Last vote cast %s.", top.Target, top.VoteCount, since, last)
}

// FormatTimestamp renders a timestamp for display. Unparsed timestamps show their raw text.
func FormatTimestamp(ts domain.Timestamp) string {
	if !ts.Valid() {
		if ts.Raw == "" {
			return UnknownTime
		}
		return ts.Raw
	}
	return ts.Time.Format(DisplayTimeLayout)
}
