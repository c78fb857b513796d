package tally

import (
	"errors"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"varulv/internal/domain"
)

// DefaultVoteMarker is the token that opens a vote line
const DefaultVoteMarker = "Röst:"

// mentionPattern matches an anchor-style @-mention and captures the handle
const mentionPattern = `<a [^>]*>@([^<]+)</a>`

var errMissingAuthor = errors.New("post has no author")

// Parser turns post records into vote events
type Parser struct {
	voteLine *regexp.Regexp
	logger   *slog.Logger
}

// NewParser creates a parser for lines starting with the given vote marker
func NewParser(marker string, logger *slog.Logger) *Parser {
	if marker == "" {
		marker = DefaultVoteMarker
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		voteLine: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(marker) + `.*` + mentionPattern),
		logger:   logger,
	}
}

// ParsePost returns one event per vote line in the post body.
// A post without a post ID yields no events.
func (p *Parser) ParsePost(post domain.PostRecord) ([]domain.VoteEvent, error) {
	if post.PostID == "" {
		return nil, nil
	}
	voter := strings.TrimSpace(post.AuthorID)
	if voter == "" {
		return nil, errMissingAuthor
	}

	ts := domain.ParseTimestamp(post.TimestampText)

	var events []domain.VoteEvent
	for _, line := range strings.Split(post.Body, "\n") {
		m := p.voteLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		target := strings.TrimSpace(html.UnescapeString(m[1]))
		if target == "" {
			continue
		}
		events = append(events, domain.VoteEvent{
			Voter:     domain.PlayerID(voter),
			Target:    domain.PlayerID(target),
			PostID:    post.PostID,
			Timestamp: ts,
		})
	}
	return events, nil
}

// ParsePosts parses a batch of posts in order. Posts that fail are logged and skipped.
func (p *Parser) ParsePosts(posts []domain.PostRecord) []domain.VoteEvent {
	events := make([]domain.VoteEvent, 0)
	for _, post := range posts {
		parsed, err := p.ParsePost(post)
		if err != nil {
			p.logger.Warn("skipping malformed post", "postID", post.PostID, "error", err)
			continue
		}
		events = append(events, parsed...)
	}
	return events
}
