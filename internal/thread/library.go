package thread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"varulv/internal/domain"
)

// DirectoryFile is the optional listing of threads in the data directory
const DirectoryFile = "threads.json"

var pageSegment = regexp.MustCompile(`\|\s*Page\s+\d+\s*\|`)

// Library reads thread listings and pages from a data directory laid out as
// <dir>/<slug>/page<N>.html
type Library struct {
	dir          string
	verifyTitles bool
	logger       *slog.Logger

	mu      sync.RWMutex
	threads []domain.ThreadInfo
}

// NewLibrary creates a library over dir. Call Refresh to load the listing.
func NewLibrary(dir string, verifyTitles bool, logger *slog.Logger) *Library {
	return &Library{
		dir:          dir,
		verifyTitles: verifyTitles,
		logger:       logger,
		threads:      make([]domain.ThreadInfo, 0),
	}
}

// Refresh reloads the thread listing from threads.json, or by scanning the
// thread directories when there is no listing file
func (l *Library) Refresh(ctx context.Context) error {
	threads, err := l.readDirectoryFile()
	if errors.Is(err, fs.ErrNotExist) {
		threads, err = l.scan(ctx)
	}
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.threads = threads

	l.logger.Info("thread library refreshed", "dir", l.dir, "threads", len(threads))
	return nil
}

// Threads returns the current listing
func (l *Library) Threads() []domain.ThreadInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.ThreadInfo, len(l.threads))
	copy(out, l.threads)
	return out
}

// Lookup returns a thread by slug
func (l *Library) Lookup(slug string) (domain.ThreadInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, t := range l.threads {
		if t.Slug == slug {
			return t, nil
		}
	}
	return domain.ThreadInfo{}, fmt.Errorf("%w: %s", domain.ErrThreadNotFound, slug)
}

// LoadPosts reads the posts of pages 1..info.Pages in order. Paging stops at the first
// page that is missing, unreadable or fails title verification; the posts collected so
// far are returned along with the number of pages read.
func (l *Library) LoadPosts(ctx context.Context, info domain.ThreadInfo) ([]domain.PostRecord, int, error) {
	posts := make([]domain.PostRecord, 0)
	pagesRead := 0

	for page := 1; page <= info.Pages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		doc, err := l.readPage(info.Slug, page)
		if err != nil {
			l.logger.Warn("page unavailable, treating as end of thread", "slug", info.Slug, "page", page, "error", err)
			break
		}

		if l.verifyTitles {
			if err := VerifyPageTitle(pageTitle(doc), page); err != nil {
				l.logger.Warn("page title mismatch, treating as end of thread", "slug", info.Slug, "page", page, "error", err)
				break
			}
		}

		posts = append(posts, extractPosts(doc)...)
		pagesRead++
	}

	if pagesRead == 0 {
		return nil, 0, fmt.Errorf("%w: %s", domain.ErrNoPages, info.Slug)
	}

	l.logger.Debug("thread pages read", "slug", info.Slug, "pages", pagesRead, "posts", len(posts))
	return posts, pagesRead, nil
}

func (l *Library) readPage(slug string, page int) (*goquery.Document, error) {
	f, err := os.Open(l.pagePath(slug, page))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return goquery.NewDocumentFromReader(f)
}

func (l *Library) pagePath(slug string, page int) string {
	return filepath.Join(l.dir, slug, fmt.Sprintf("page%d.html", page))
}

func (l *Library) readDirectoryFile() ([]domain.ThreadInfo, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, DirectoryFile))
	if err != nil {
		return nil, err
	}

	var threads []domain.ThreadInfo
	if err := json.Unmarshal(data, &threads); err != nil {
		return nil, fmt.Errorf("parse %s: %w", DirectoryFile, err)
	}
	for _, t := range threads {
		if t.Slug == "" || strings.ContainsAny(t.Slug, `/\`) || t.Slug == ".." {
			return nil, fmt.Errorf("parse %s: invalid slug %q", DirectoryFile, t.Slug)
		}
	}
	return threads, nil
}

// scan builds the listing from the thread directories: the name comes from the
// cleaned <title> of page1.html and the page count from the pageN.html files present
func (l *Library) scan(ctx context.Context) ([]domain.ThreadInfo, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	threads := make([]domain.ThreadInfo, 0)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}

		slug := entry.Name()
		doc, err := l.readPage(slug, 1)
		if err != nil {
			continue
		}
		name := CleanTitle(pageTitle(doc))
		if name == "" {
			l.logger.Debug("skipping thread without title", "slug", slug)
			continue
		}

		pages, err := l.countPages(slug)
		if err != nil {
			return nil, err
		}
		threads = append(threads, domain.ThreadInfo{Slug: slug, Name: name, Pages: pages})
	}
	return threads, nil
}

func (l *Library) countPages(slug string) (int, error) {
	files, err := os.ReadDir(filepath.Join(l.dir, slug))
	if err != nil {
		return 0, fmt.Errorf("read thread dir: %w", err)
	}
	count := 0
	for _, f := range files {
		name := f.Name()
		if !f.IsDir() && strings.HasPrefix(name, "page") && strings.HasSuffix(name, ".html") {
			count++
		}
	}
	return count, nil
}
