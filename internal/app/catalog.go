package app

import (
	"context"
	"errors"
	"log/slog"

	"varulv/internal/domain"
	"varulv/internal/storage"
	"varulv/internal/tally"
	"varulv/internal/thread"
)

// ThreadSource resolves threads and their vote events
type ThreadSource interface {
	Threads() []domain.ThreadInfo
	Lookup(slug string) (domain.ThreadInfo, error)
	LoadEvents(ctx context.Context, info domain.ThreadInfo) ([]domain.VoteEvent, error)
	Refresh(ctx context.Context) error
}

// Catalog loads vote events from the thread library, caching parsed results when a store is set
type Catalog struct {
	library *thread.Library
	parser  *tally.Parser
	store   *storage.Store
	logger  *slog.Logger
}

// NewCatalog creates a catalog. store may be nil to disable caching.
func NewCatalog(library *thread.Library, parser *tally.Parser, store *storage.Store, logger *slog.Logger) *Catalog {
	return &Catalog{
		library: library,
		parser:  parser,
		store:   store,
		logger:  logger,
	}
}

// Threads returns the thread directory listing
func (c *Catalog) Threads() []domain.ThreadInfo {
	return c.library.Threads()
}

// Lookup returns a thread by slug
func (c *Catalog) Lookup(slug string) (domain.ThreadInfo, error) {
	return c.library.Lookup(slug)
}

// Refresh reloads the thread directory listing
func (c *Catalog) Refresh(ctx context.Context) error {
	return c.library.Refresh(ctx)
}

// LoadEvents returns the vote events of a thread, from cache when possible
func (c *Catalog) LoadEvents(ctx context.Context, info domain.ThreadInfo) ([]domain.VoteEvent, error) {
	if c.store != nil {
		events, err := c.store.LoadThread(ctx, info.Slug, info.Pages)
		switch {
		case err == nil:
			c.logger.Debug("thread served from cache", "slug", info.Slug, "votes", len(events))
			return events, nil
		case !errors.Is(err, domain.ErrCacheMiss):
			c.logger.Warn("vote cache read failed", "slug", info.Slug, "error", err)
		}
	}

	posts, pages, err := c.library.LoadPosts(ctx, info)
	if err != nil {
		return nil, err
	}
	events := c.parser.ParsePosts(posts)

	// A partial read is not cached so missing pages are picked up once they appear.
	switch {
	case c.store == nil:
	case pages < info.Pages:
		c.logger.Debug("partial thread not cached", "slug", info.Slug, "pages", pages, "expected", info.Pages)
	default:
		if err := c.store.SaveThread(ctx, info.Slug, info.Pages, events); err != nil {
			c.logger.Warn("vote cache write failed", "slug", info.Slug, "error", err)
		}
	}

	c.logger.Info("thread parsed", "slug", info.Slug, "pages", pages, "posts", len(posts), "votes", len(events))
	return events, nil
}
