package thread

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varulv/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pageHTML renders a thread page with the given title and posts
func pageHTML(title string, posts ...string) string {
	return "<html><head><title>" + title + "</title></head><body>" + strings.Join(posts, "\n") + "</body></html>"
}

// postHTML renders one post the way the forum marks it up
func postHTML(author, id, datetime, body string) string {
	return fmt.Sprintf(`<article class="message" data-author="%s" id="js-post-%s">
<header><time class="u-dt" datetime="%s">1 mars</time></header>
<div class="message-content">%s</div>
</article>`, author, id, datetime, body)
}

func writePage(t *testing.T, dir, slug string, page int, html string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, slug), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, slug, fmt.Sprintf("page%d.html", page)), []byte(html), 0o644))
}

func TestExtractPosts(t *testing.T) {
	body := "Hej!\n" +
		`<blockquote>Röst: <a href="/m/1">@Citerad</a></blockquote>` + "\n" +
		`Röst: <a href="/m/2" class="username">@Anna</a>`
	html := pageHTML("Varulv - Byn | rollspel.nu",
		postHTML("Kalle", "101", "2024-03-01T18:00:00+0100", body),
		`<article data-author="Bo"><div class="message-content">ingen id</div></article>`,
	)

	posts, err := ExtractPosts(strings.NewReader(html))
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, "Kalle", posts[0].AuthorID)
	assert.Equal(t, "101", posts[0].PostID)
	assert.Equal(t, "2024-03-01T18:00:00+0100", posts[0].TimestampText)
	assert.Contains(t, posts[0].Body, "@Anna")
	assert.NotContains(t, posts[0].Body, "Citerad")

	assert.Equal(t, "Bo", posts[1].AuthorID)
	assert.Empty(t, posts[1].PostID)
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Byn i dalen", CleanTitle("Varulv - Byn i dalen | rollspel.nu"))
	assert.Equal(t, "Gammal tråd", CleanTitle("  Nekromanti - Gammal tråd | rollspel.nu "))
	assert.Equal(t, "Utan prefix", CleanTitle("Utan prefix"))
}

func TestVerifyPageTitle(t *testing.T) {
	assert.NoError(t, VerifyPageTitle("Byn | rollspel.nu", 1))
	assert.Error(t, VerifyPageTitle("Byn | Page 1 | rollspel.nu", 1))
	assert.NoError(t, VerifyPageTitle("Byn | Page 3 | rollspel.nu", 3))
	assert.Error(t, VerifyPageTitle("Byn | Page 2 | rollspel.nu", 3))
	assert.Error(t, VerifyPageTitle("", 2))
}

func TestLibraryRefresh(t *testing.T) {
	t.Run("FromDirectoryFile", func(t *testing.T) {
		dir := t.TempDir()
		listing := `[{"slug":"byn.1","name":"Byn","pages":2}]`
		require.NoError(t, os.WriteFile(filepath.Join(dir, DirectoryFile), []byte(listing), 0o644))

		lib := NewLibrary(dir, false, testLogger())
		require.NoError(t, lib.Refresh(context.Background()))
		assert.Equal(t, []domain.ThreadInfo{{Slug: "byn.1", Name: "Byn", Pages: 2}}, lib.Threads())

		info, err := lib.Lookup("byn.1")
		require.NoError(t, err)
		assert.Equal(t, 2, info.Pages)

		_, err = lib.Lookup("saknas")
		assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	})

	t.Run("InvalidSlug", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, DirectoryFile), []byte(`[{"slug":"../etc","pages":1}]`), 0o644))
		assert.Error(t, NewLibrary(dir, false, testLogger()).Refresh(context.Background()))
	})

	t.Run("ByScanning", func(t *testing.T) {
		dir := t.TempDir()
		writePage(t, dir, "b-traden.2", 1, pageHTML("Varulv - B-tråden | rollspel.nu"))
		writePage(t, dir, "b-traden.2", 2, pageHTML("Varulv - B-tråden | Page 2 | rollspel.nu"))
		writePage(t, dir, "a-traden.1", 1, pageHTML("Nekromanti - A-tråden | rollspel.nu"))
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "tom"), 0o755))

		lib := NewLibrary(dir, false, testLogger())
		require.NoError(t, lib.Refresh(context.Background()))
		assert.Equal(t, []domain.ThreadInfo{
			{Slug: "a-traden.1", Name: "A-tråden", Pages: 1},
			{Slug: "b-traden.2", Name: "B-tråden", Pages: 2},
		}, lib.Threads())
	})
}

func TestLibraryLoadPosts(t *testing.T) {
	dir := t.TempDir()
	slug := "byn.1"
	writePage(t, dir, slug, 1, pageHTML("Varulv - Byn | rollspel.nu",
		postHTML("Kalle", "1", "2024-03-01T18:00:00+0100", `Röst: <a href="#">@Anna</a>`)))
	writePage(t, dir, slug, 2, pageHTML("Varulv - Byn | Page 2 | rollspel.nu",
		postHTML("Anna", "2", "2024-03-01T19:00:00+0100", `Röst: <a href="#">@Kalle</a>`)))
	writePage(t, dir, slug, 4, pageHTML("Varulv - Byn | Page 4 | rollspel.nu",
		postHTML("Bo", "4", "2024-03-01T20:00:00+0100", `Röst: <a href="#">@Kalle</a>`)))

	t.Run("StopsAtMissingPage", func(t *testing.T) {
		lib := NewLibrary(dir, true, testLogger())
		posts, pages, err := lib.LoadPosts(context.Background(), domain.ThreadInfo{Slug: slug, Pages: 4})
		require.NoError(t, err)
		assert.Equal(t, 2, pages)
		require.Len(t, posts, 2)
		assert.Equal(t, "Kalle", posts[0].AuthorID)
		assert.Equal(t, "Anna", posts[1].AuthorID)
	})

	t.Run("StopsAtTitleMismatch", func(t *testing.T) {
		writePage(t, dir, "kopia.2", 1, pageHTML("Byn", postHTML("A", "1", "", "")))
		writePage(t, dir, "kopia.2", 2, pageHTML("Byn", postHTML("B", "2", "", "")))

		posts, pages, err := NewLibrary(dir, true, testLogger()).LoadPosts(context.Background(), domain.ThreadInfo{Slug: "kopia.2", Pages: 2})
		require.NoError(t, err)
		assert.Len(t, posts, 1)
		assert.Equal(t, 1, pages)

		posts, pages, err = NewLibrary(dir, false, testLogger()).LoadPosts(context.Background(), domain.ThreadInfo{Slug: "kopia.2", Pages: 2})
		require.NoError(t, err)
		assert.Len(t, posts, 2)
		assert.Equal(t, 2, pages)
	})

	t.Run("NoPages", func(t *testing.T) {
		_, _, err := NewLibrary(dir, false, testLogger()).LoadPosts(context.Background(), domain.ThreadInfo{Slug: "saknas", Pages: 3})
		assert.ErrorIs(t, err, domain.ErrNoPages)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := NewLibrary(dir, false, testLogger()).LoadPosts(ctx, domain.ThreadInfo{Slug: slug, Pages: 1})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
