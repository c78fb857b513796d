package tally

import (
	"slices"

	"varulv/internal/domain"
)

// chronological returns a copy of events stable-sorted by timestamp
func chronological(events []domain.VoteEvent) []domain.VoteEvent {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b domain.VoteEvent) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return sorted
}
