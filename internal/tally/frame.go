package tally

import (
	"varulv/internal/domain"
)

// View is everything derived from one working set: the leaderboard and the table rows
type View struct {
	Mode       domain.ViewMode
	Cutoff     domain.Cutoff
	WorkingSet []domain.VoteEvent
	Board      *Leaderboard
	Rows       []Row
}

// BuildView resolves the working set and aggregates it
func BuildView(events []domain.VoteEvent, mode domain.ViewMode, cutoff domain.Cutoff) *View {
	working := Resolve(events, mode, cutoff)
	return &View{
		Mode:       mode,
		Cutoff:     cutoff,
		WorkingSet: working,
		Board:      Aggregate(working),
		Rows:       BuildRows(working),
	}
}
