package tally

import (
	"fmt"
	"time"

	"varulv/internal/domain"
)

var baseTime = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

// at returns a timestamp the given number of minutes after baseTime
func at(minute int) domain.Timestamp {
	return domain.NewTimestamp(baseTime.Add(time.Duration(minute) * time.Minute))
}

// vote builds an event cast at the given minute
func vote(voter, target string, minute int) domain.VoteEvent {
	return domain.VoteEvent{
		Voter:     domain.PlayerID(voter),
		Target:    domain.PlayerID(target),
		PostID:    fmt.Sprintf("%d", 1000+minute),
		Timestamp: at(minute),
	}
}

func targets(events []domain.VoteEvent) []domain.PlayerID {
	out := make([]domain.PlayerID, len(events))
	for i, e := range events {
		out[i] = e.Target
	}
	return out
}

func ids(names ...string) []domain.PlayerID {
	out := make([]domain.PlayerID, len(names))
	for i, n := range names {
		out[i] = domain.PlayerID(n)
	}
	return out
}
