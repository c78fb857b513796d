package tally

import (
	"varulv/internal/domain"
)

// Resolve derives the working set for a view mode and cutoff, in chronological order
func Resolve(events []domain.VoteEvent, mode domain.ViewMode, cutoff domain.Cutoff) []domain.VoteEvent {
	admitted := make([]domain.VoteEvent, 0, len(events))
	for _, e := range events {
		if cutoff.Admits(e.Timestamp) {
			admitted = append(admitted, e)
		}
	}

	if mode == domain.ViewAll {
		return chronological(admitted)
	}
	return Latest(admitted)
}

// Latest keeps each voter's chronologically last vote. Equal timestamps keep input order,
// so the later event in the input wins.
func Latest(events []domain.VoteEvent) []domain.VoteEvent {
	sorted := chronological(events)

	last := make(map[domain.PlayerID]int, len(sorted))
	for i, e := range sorted {
		last[e.Voter] = i
	}

	latest := make([]domain.VoteEvent, 0, len(last))
	for i, e := range sorted {
		if last[e.Voter] == i {
			latest = append(latest, e)
		}
	}
	return latest
}
