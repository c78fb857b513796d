package tally

import (
	"slices"

	"varulv/internal/domain"
)

// ChainTracker records, per voter, the targets they moved their vote between
type ChainTracker struct {
	chains map[domain.PlayerID][]domain.PlayerID
}

// NewChainTracker creates an empty tracker
func NewChainTracker() *ChainTracker {
	return &ChainTracker{chains: make(map[domain.PlayerID][]domain.PlayerID)}
}

// Observe folds in the next event in time order and returns the voter's chain so far.
// A repeat of the voter's current target is not appended.
func (c *ChainTracker) Observe(e domain.VoteEvent) []domain.PlayerID {
	chain := c.chains[e.Voter]
	if len(chain) == 0 || chain[len(chain)-1] != e.Target {
		chain = append(chain, e.Target)
		c.chains[e.Voter] = chain
	}
	return slices.Clone(chain)
}

// Chain returns a voter's chain, or nil if they have not voted
func (c *ChainTracker) Chain(voter domain.PlayerID) []domain.PlayerID {
	return slices.Clone(c.chains[voter])
}

// Chains returns every voter's chain
func (c *ChainTracker) Chains() map[domain.PlayerID][]domain.PlayerID {
	out := make(map[domain.PlayerID][]domain.PlayerID, len(c.chains))
	for voter, chain := range c.chains {
		out[voter] = slices.Clone(chain)
	}
	return out
}

// BuildChains scans events in time order and returns each voter's chain.
// Voters without events are absent from the result.
func BuildChains(events []domain.VoteEvent) map[domain.PlayerID][]domain.PlayerID {
	tracker := NewChainTracker()
	for _, e := range chronological(events) {
		tracker.Observe(e)
	}
	return tracker.Chains()
}
