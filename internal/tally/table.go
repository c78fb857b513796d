package tally

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"varulv/internal/domain"
)

// NoStanding is shown when a place has no holder yet
const NoStanding = "–"

// chainSeparator joins the targets of a vote chain
const chainSeparator = " → "

// rowTimeLayout is used for the time column of the table
const rowTimeLayout = "2006-01-02 15:04:05"

// Standing is a target and its running vote count
type Standing struct {
	Target    domain.PlayerID `json:"target"`
	VoteCount int             `json:"voteCount"`
}

// String renders the standing as "name (count)"
func (s *Standing) String() string {
	if s == nil {
		return NoStanding
	}
	return fmt.Sprintf("%s (%d)", s.Target, s.VoteCount)
}

// Row is one vote event of the working set with the standings after it was counted
type Row struct {
	Voter     domain.PlayerID   `json:"voter"`
	Target    domain.PlayerID   `json:"target"`
	PostID    string            `json:"postId"`
	Timestamp domain.Timestamp  `json:"timestamp"`
	Chain     []domain.PlayerID `json:"chain"`
	Leader    *Standing         `json:"leader"`
	RunnerUp  *Standing         `json:"runnerUp"`
}

// ChainText renders the voter's chain as "A → B → C"
func (r Row) ChainText() string {
	names := make([]string, len(r.Chain))
	for i, p := range r.Chain {
		names[i] = string(p)
	}
	return strings.Join(names, chainSeparator)
}

// TimeText renders the row's timestamp for the time column
func (r Row) TimeText() string {
	if !r.Timestamp.Valid() {
		return r.Timestamp.Raw
	}
	return r.Timestamp.Time.Format(rowTimeLayout)
}

// Column returns the displayed text of a table column
func (r Row) Column(col int) string {
	switch col {
	case ColumnVoter:
		return string(r.Voter)
	case ColumnChain:
		return r.ChainText()
	case ColumnTime:
		return r.TimeText()
	case ColumnLeader:
		return r.Leader.String()
	case ColumnRunnerUp:
		return r.RunnerUp.String()
	default:
		return ""
	}
}

// BuildRows produces one row per event of the working set in time order. The
// standings of each row are recomputed after that row's vote is counted.
func BuildRows(events []domain.VoteEvent) []Row {
	sorted := chronological(events)

	first := make(map[domain.PlayerID]domain.Timestamp)
	for _, e := range sorted {
		if ts, ok := first[e.Target]; !ok || e.Timestamp.Before(ts) {
			first[e.Target] = e.Timestamp
		}
	}

	running := make(map[domain.PlayerID]int)
	tracker := NewChainTracker()
	rows := make([]Row, 0, len(sorted))

	for _, e := range sorted {
		running[e.Target]++

		standing := make([]Entry, 0, len(running))
		for target, count := range running {
			standing = append(standing, Entry{Target: target, VoteCount: count, FirstVoteAt: first[target]})
		}
		rank(standing)

		row := Row{
			Voter:     e.Voter,
			Target:    e.Target,
			PostID:    e.PostID,
			Timestamp: e.Timestamp,
			Chain:     tracker.Observe(e),
		}
		if len(standing) > 0 {
			row.Leader = &Standing{Target: standing[0].Target, VoteCount: standing[0].VoteCount}
		}
		if len(standing) > 1 {
			row.RunnerUp = &Standing{Target: standing[1].Target, VoteCount: standing[1].VoteCount}
		}
		rows = append(rows, row)
	}
	return rows
}

// Table columns
const (
	ColumnVoter = iota
	ColumnChain
	ColumnTime
	ColumnLeader
	ColumnRunnerUp
	columnCount
)

// SortSpec orders table rows by one column
type SortSpec struct {
	Column     int
	Descending bool
}

// String renders the spec as "<col>-<asc|desc>"
func (s SortSpec) String() string {
	dir := "asc"
	if s.Descending {
		dir = "desc"
	}
	return strconv.Itoa(s.Column) + "-" + dir
}

// ParseSortSpec parses "<col>-<asc|desc>"
func ParseSortSpec(s string) (SortSpec, error) {
	col, dir, ok := strings.Cut(s, "-")
	if !ok {
		return SortSpec{}, fmt.Errorf("%w: %q", domain.ErrInvalidSort, s)
	}
	idx, err := strconv.Atoi(col)
	if err != nil || idx < 0 || idx >= columnCount {
		return SortSpec{}, fmt.Errorf("%w: column %q", domain.ErrInvalidSort, col)
	}
	switch dir {
	case "asc":
		return SortSpec{Column: idx}, nil
	case "desc":
		return SortSpec{Column: idx, Descending: true}, nil
	default:
		return SortSpec{}, fmt.Errorf("%w: direction %q", domain.ErrInvalidSort, dir)
	}
}

// SortRows returns rows ordered by the spec's column text using Swedish collation
func SortRows(rows []Row, spec SortSpec) []Row {
	col := newCollator()
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b Row) int {
		c := col.CompareString(a.Column(spec.Column), b.Column(spec.Column))
		if spec.Descending {
			return -c
		}
		return c
	})
	return sorted
}

// FilterRows keeps rows cast by one of the given voters. An empty set keeps everything.
func FilterRows(rows []Row, voters []domain.PlayerID) []Row {
	if len(voters) == 0 {
		return rows
	}
	keep := make(map[domain.PlayerID]bool, len(voters))
	for _, v := range voters {
		keep[v] = true
	}
	filtered := make([]Row, 0, len(rows))
	for _, r := range rows {
		if keep[r.Voter] {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// Voters returns the distinct voters in Swedish collation order
func Voters(events []domain.VoteEvent) []domain.PlayerID {
	seen := make(map[domain.PlayerID]bool)
	voters := make([]domain.PlayerID, 0)
	for _, e := range events {
		if !seen[e.Voter] {
			seen[e.Voter] = true
			voters = append(voters, e.Voter)
		}
	}
	col := newCollator()
	slices.SortFunc(voters, func(a, b domain.PlayerID) int {
		return col.CompareString(string(a), string(b))
	})
	return voters
}

// PlayerCount returns the number of distinct players appearing as voter or target
func PlayerCount(events []domain.VoteEvent) int {
	seen := make(map[domain.PlayerID]struct{})
	for _, e := range events {
		seen[e.Voter] = struct{}{}
		seen[e.Target] = struct{}{}
	}
	return len(seen)
}

// newCollator returns a Swedish collator. Collators are not safe for concurrent use.
func newCollator() *collate.Collator {
	return collate.New(language.Swedish)
}
